package searchvolume

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Window is an inclusive reporting date range in YYYY-MM-DD form.
// The zero Window means the calendar month before the lookup.
type Window struct {
	Start string
	End   string
}

// PreviousMonth returns the full calendar month preceding now, in UTC.
func PreviousMonth(now time.Time) Window {
	now = now.UTC()
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastOfPrev := firstOfThis.AddDate(0, 0, -1)
	firstOfPrev := time.Date(lastOfPrev.Year(), lastOfPrev.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: firstOfPrev.Format(dateLayout), End: lastOfPrev.Format(dateLayout)}
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool {
	return w.Start == "" && w.End == ""
}

// Resolve returns w, or the previous calendar month when w is unset.
func (w Window) Resolve(now time.Time) Window {
	if w.IsZero() {
		return PreviousMonth(now)
	}
	return w
}

// Validate checks that both dates parse and that Start is not after End.
func (w Window) Validate() error {
	if w.IsZero() {
		return nil
	}
	start, err := time.Parse(dateLayout, w.Start)
	if err != nil {
		return fmt.Errorf("invalid window start %q: %w", w.Start, err)
	}
	end, err := time.Parse(dateLayout, w.End)
	if err != nil {
		return fmt.Errorf("invalid window end %q: %w", w.End, err)
	}
	if start.After(end) {
		return fmt.Errorf("window start %s is after end %s", w.Start, w.End)
	}
	return nil
}
