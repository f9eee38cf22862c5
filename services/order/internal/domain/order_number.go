package domain

import (
	"context"
	"time"
)

const orderNumberModulo = 999

// OrderNumberGenerator hands out the human-facing number shown on the kitchen display.
// dateKey identifies the business day (YYYY-MM-DD) the counter belongs to.
type OrderNumberGenerator interface {
	Next(ctx context.Context, dateKey string) (int, error)
}

// DateKey is the UTC calendar day of t, so every replica agrees on when the counter resets.
func DateKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// ClockSequence derives a number in [1, 999] from the wall clock.
// Two orders confirmed in the same minute get the same number.
type ClockSequence struct {
	Now func() time.Time
}

func (c ClockSequence) Next(_ context.Context, _ string) (int, error) {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	now = now.UTC()

	minutesOfDay := now.Hour()*60 + now.Minute()

	return (now.YearDay()+minutesOfDay)%orderNumberModulo + 1, nil
}
