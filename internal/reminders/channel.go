package reminders

import "strings"

// SelectChannel picks how a reminder of the given kind reaches the patient.
// Confirmations use email+sms when both exist; every other kind prefers email
// and falls back to SMS. Blank contact fields count as missing.
func SelectChannel(p *Patient, kind Kind) Channel {
	if p == nil {
		return ChannelNone
	}
	hasEmail := strings.TrimSpace(p.Email) != ""
	hasPhone := strings.TrimSpace(p.Phone) != ""

	if kind == KindConfirmation && hasEmail && hasPhone {
		return ChannelEmailAndSMS
	}
	switch {
	case hasEmail:
		return ChannelEmail
	case hasPhone:
		return ChannelSMS
	default:
		return ChannelNone
	}
}
