package engine

import (
	"fmt"
	"time"
)

// deliveryWindow is the absolute interval a rule may deliver within today.
type deliveryWindow struct {
	start time.Time
	end   time.Time
}

// resolveWindow turns a rule's "HH:MM" bounds into absolute times around now.
// A start already elapsed rolls to tomorrow; an end at or before the start
// rolls forward 24h, so overnight windows like 22:00-02:00 work.
func resolveWindow(now time.Time, startHM, endHM string) (deliveryWindow, error) {
	start, err := atClock(now, startHM)
	if err != nil {
		return deliveryWindow{}, fmt.Errorf("window start: %w", err)
	}
	end, err := atClock(now, endHM)
	if err != nil {
		return deliveryWindow{}, fmt.Errorf("window end: %w", err)
	}

	if start.Before(now) {
		start = start.Add(24 * time.Hour)
		end = end.Add(24 * time.Hour)
	}
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return deliveryWindow{start: start, end: end}, nil
}

// openWindow is the unbounded window for infinite rules: deliveries start now
// and may stretch across the next 24 hours.
func openWindow(now time.Time) deliveryWindow {
	return deliveryWindow{start: now, end: now.Add(24 * time.Hour)}
}

func atClock(day time.Time, hm string) (time.Time, error) {
	t, err := time.Parse("15:04", hm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock value %q", hm)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}
