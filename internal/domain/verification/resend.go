package verification

import "time"

// ResendPolicy governs when a new code may be requested for a session. The
// cooldown doubles with every resend, capped at Max, so a client hammering
// the resend button backs off without ever being locked out entirely.
type ResendPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// Cooldown returns the wait required after the nth code dispatch (0 for the
// initial send).
func (p ResendPolicy) Cooldown(resends int) time.Duration {
	d := p.Base
	for range resends {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	return d
}

// NextEligible returns the earliest instant a resend is permitted for a code
// dispatched at sentAt.
func (p ResendPolicy) NextEligible(sentAt time.Time, resends int) time.Time {
	return sentAt.Add(p.Cooldown(resends))
}
