package scheduling

import (
	"sort"
	"time"
)

// FreeSlots instantiates templates on every calendar day in [start, end]
// and removes the occupied timestamps. Matching is exact; the result is
// ascending and free of duplicates. An inverted range yields no slots.
func FreeSlots(templates []*Template, occupied []time.Time, start, end time.Time) []time.Time {
	first := startOfDay(start)
	last := startOfDay(end)
	if first.After(last) {
		return []time.Time{}
	}

	taken := make(map[int64]bool, len(occupied))
	for _, t := range occupied {
		taken[t.UnixNano()] = true
	}

	byDay := make(map[Weekday][]TimeOfDay)
	for _, tpl := range templates {
		byDay[tpl.Weekday] = append(byDay[tpl.Weekday], tpl.Time)
	}

	seen := make(map[int64]bool)
	slots := []time.Time{}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, tod := range byDay[WeekdayOf(day)] {
			candidate := tod.On(day)
			key := candidate.UnixNano()
			if taken[key] || seen[key] {
				continue
			}
			seen[key] = true
			slots = append(slots, candidate)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Before(slots[j]) })
	return slots
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
