// Package toast provides the page-local notification service.
//
// A toast is a short, auto-dismissing message (title, body, severity) shown
// stacked on a presentation Surface, newest last. Callers fire and forget:
// Notify never blocks on I/O, never returns an error and never panics.
//
// # Lifecycle
//
// Every toast moves created -> displayed -> dismissed exactly once. Dismissal
// is triggered either by the per-toast timer (Config.DismissAfter, 5s by
// default) or by an explicit Dismiss call from a surface's close control,
// whichever happens first; the other becomes a no-op.
//
// # Presentation
//
// The Service owns the ordered set of active toasts and drives one or more
// Surfaces. When no surface is attached or the surface fails, the toast is
// withdrawn and handed to the Fallback, a synchronous alert-style presenter.
//
// Time is read through a Clock so tests can drive dismissal deterministically
// (see package toasttest).
package toast
