package service

import (
	"time"

	"github.com/QODOHUB/ayami-storefront/config"
)

// BuildTimeSlots returns the discrete delivery slots offered for day.
// Slots start at now plus the lead time (or at the opening hour when day is
// in the future), rounded up to the slot interval, and run to the closing
// bound, which is later on the configured rest days.
func BuildTimeSlots(now time.Time, day time.Time, cfg config.CheckoutConfig) []time.Time {
	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var start time.Time
	if date.After(today) {
		start = date.Add(time.Duration(cfg.OpeningHour) * time.Hour)
	} else {
		start = now.Add(cfg.SlotLeadTime)
	}
	start = roundUp(start, cfg.SlotInterval)

	closingHour := cfg.ClosingHour
	if isRestDay(date.Weekday(), cfg.RestDays) {
		closingHour = cfg.RestDayClosingHour
	}
	end := date.Add(time.Duration(closingHour) * time.Hour)

	var slots []time.Time
	for t := start; !t.After(end); t = t.Add(cfg.SlotInterval) {
		slots = append(slots, t)
	}
	return slots
}

// ValidSlot reports whether candidate is one of the offered slots.
func ValidSlot(candidate time.Time, now time.Time, cfg config.CheckoutConfig) bool {
	for _, slot := range BuildTimeSlots(now, candidate, cfg) {
		if slot.Equal(candidate) {
			return true
		}
	}
	return false
}

// roundUp rounds relative to the day's midnight so the result is exact in
// any timezone offset.
func roundUp(t time.Time, interval time.Duration) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight)
	rounded := elapsed.Truncate(interval)
	if rounded < elapsed {
		rounded += interval
	}
	return midnight.Add(rounded)
}

func isRestDay(day time.Weekday, restDays []time.Weekday) bool {
	for _, rd := range restDays {
		if day == rd {
			return true
		}
	}
	return false
}
