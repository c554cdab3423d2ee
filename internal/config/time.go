package config

import "time"

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

func CalculateMillisecondsOfCheckingPeriod(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

// Duration converts the timer; a zero timer falls back to the given default.
func (t Timer) Duration(fallback time.Duration) time.Duration {
	ms := CalculateMillisecondsOfCheckingPeriod(t)
	if ms == 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
