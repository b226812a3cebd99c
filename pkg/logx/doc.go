// Package logx configures taskdesk's structured logging.
//
// Components log through logx.Logger, a small value type over zerolog:
//   - Console output is human readable (short timestamp + short caller)
//   - File output is JSON, one event per line
//   - Level and sinks can be swapped at runtime via Service.Apply
package logx
