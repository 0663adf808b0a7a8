package model

import (
	"strings"
	"time"
)

// EmailSettings is the singleton notification preferences document.
type EmailSettings struct {
	Enabled      bool   `json:"enabled"`
	WeeklyDigest bool   `json:"weeklyDigest"`
	Email        string `json:"email"`
	DigestDay    string `json:"digestDay"`
}

func DefaultEmailSettings() EmailSettings {
	return EmailSettings{
		Enabled:      false,
		WeeklyDigest: true,
		Email:        "",
		DigestDay:    "monday",
	}
}

// Weekday resolves DigestDay to a time.Weekday.
func (s EmailSettings) Weekday() (time.Weekday, bool) {
	return ParseWeekday(s.DigestDay)
}

// CanDeliver reports whether email notifications have somewhere to go.
func (s EmailSettings) CanDeliver() bool {
	return s.Enabled && strings.Contains(s.Email, "@")
}

// ParseWeekday accepts English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, true
		}
	}
	return time.Sunday, false
}
