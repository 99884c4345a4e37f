package common

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

func ValidateRecipientID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("recipient id is required")
	}
	if len(id) > 128 {
		return errors.New("recipient id is too long")
	}
	return nil
}

// ValidateTimeOfDay accepts 24h "HH:MM".
func ValidateTimeOfDay(s string) error {
	if !timeOfDayRegex.MatchString(s) {
		return fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	return nil
}

// MinuteOfDay converts "HH:MM" into minutes after midnight.
func MinuteOfDay(s string) (int, error) {
	if err := ValidateTimeOfDay(s); err != nil {
		return 0, err
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func ValidateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone %q", tz)
	}
	return nil
}
