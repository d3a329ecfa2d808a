package reminders

import "time"

// Offset pairs a reminder kind with how long before the appointment it fires.
type Offset struct {
	Kind   Kind
	Before time.Duration
}

// OffsetTable is ordered; the scheduler creates reminders in table order.
type OffsetTable []Offset

// DefaultOffsets fires a general reminder a day ahead, a forms check four hours
// ahead and a final confirmation request one hour ahead.
var DefaultOffsets = OffsetTable{
	{Kind: KindRegular, Before: 24 * time.Hour},
	{Kind: KindFormCheck, Before: 4 * time.Hour},
	{Kind: KindConfirmation, Before: time.Hour},
}

// Lookup returns the offset configured for kind.
func (t OffsetTable) Lookup(kind Kind) (time.Duration, bool) {
	for _, o := range t {
		if o.Kind == kind {
			return o.Before, true
		}
	}
	return 0, false
}
