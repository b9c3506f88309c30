package backup

import "time"

// Schedule fires on Fridays at a fixed local hour, in even ISO weeks only.
type Schedule struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
	// EvenWeeksOnly skips odd ISO week numbers.
	EvenWeeksOnly bool
	Location      *time.Location
}

func DefaultSchedule(loc *time.Location) Schedule {
	if loc == nil {
		loc = time.Local
	}
	return Schedule{Weekday: time.Friday, Hour: 16, EvenWeeksOnly: true, Location: loc}
}

// Next returns the first firing time strictly after t.
func (s Schedule) Next(t time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, loc)
	// two weeks of candidates always contain one even ISO week
	for i := 0; i <= 14; i++ {
		c := day.AddDate(0, 0, i)
		if c.Weekday() != s.Weekday || !c.After(t) {
			continue
		}
		if s.EvenWeeksOnly {
			if _, wk := c.ISOWeek(); wk%2 != 0 {
				continue
			}
		}
		return c
	}
	// ISO years with 53 weeks can put two odd weeks back to back
	return s.Next(day.AddDate(0, 0, 14))
}
