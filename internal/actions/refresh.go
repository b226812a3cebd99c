package actions

import "time"

// Control is the trigger Refresh drives: it is disabled with a busy label,
// then the view is reloaded.
type Control interface {
	Disable(label string)
	Reload()
}

const RefreshingLabel = "Refreshing..."

// Refresh disables ctl and reloads after the refresh delay. It does not
// toast. The returned stop func cancels a pending reload.
func (a *Actions) Refresh(ctl Control) (stop func() bool) {
	ctl.Disable(RefreshingLabel)
	t := a.clock.AfterFunc(time.Duration(a.refreshDelay.Load()), ctl.Reload)
	return t.Stop
}
