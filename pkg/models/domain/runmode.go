package domain

import "time"

// RunMode tags which trigger produced a report version.
type RunMode string

const (
	RunModePreMarket  RunMode = "pre_market"
	RunModeMidday     RunMode = "midday"
	RunModePostMarket RunMode = "post_market"
	RunModeManual     RunMode = "manual"
)

// Valid reports whether m is one of the known run modes.
func (m RunMode) Valid() bool {
	switch m {
	case RunModePreMarket, RunModeMidday, RunModePostMarket, RunModeManual:
		return true
	}
	return false
}

// RunModeForSlot maps a schedule slot index to the run mode it triggers.
// The first slot of the day is the pre-market run, the last is the
// post-market run, anything between is a midday run.
func RunModeForSlot(slot, total int) RunMode {
	switch {
	case total <= 0:
		return RunModeManual
	case slot <= 0:
		return RunModePreMarket
	case slot >= total-1:
		return RunModePostMarket
	default:
		return RunModeMidday
	}
}

// RunModeForTime picks a mode from the wall clock for one-shot runs,
// mirroring the scheduled slots: morning hours map to pre-market,
// lunch hours to midday, everything after the close to post-market.
func RunModeForTime(t time.Time) RunMode {
	switch h := t.Hour(); {
	case h >= 9 && h < 12:
		return RunModePreMarket
	case h >= 12 && h < 15:
		return RunModeMidday
	default:
		return RunModePostMarket
	}
}
