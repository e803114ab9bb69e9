package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReminderWhen encodes a user's preferred reminder slot: the named MORNING
// and EVENING slots resolve to configurable times, anything else must be a
// literal HH:MM wall-clock time.
type ReminderWhen string

const (
	ReminderMorning ReminderWhen = "MORNING"
	ReminderEvening ReminderWhen = "EVENING"
)

var clockTimeRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

func (w ReminderWhen) String() string { return string(w) }

func (w ReminderWhen) IsValid() bool {
	switch w {
	case ReminderMorning, ReminderEvening:
		return true
	}
	_, _, err := ParseClockTime(string(w))
	return err == nil
}

// ParseClockTime parses a literal HH:MM wall-clock time, accepting one- or
// two-digit hours so "7:05" and "07:05" name the same minute. Out-of-range
// values like "99:99" are rejected here, at the edge, not left for the
// scheduler to trip over.
func ParseClockTime(s string) (hour, minute int, err error) {
	trimmed := strings.TrimSpace(s)
	if !clockTimeRe.MatchString(trimmed) {
		return 0, 0, fmt.Errorf("%w: invalid clock time %q", ErrValidation, s)
	}

	parts := strings.SplitN(trimmed, ":", 2)
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	if hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour out of range in %q", ErrValidation, s)
	}
	if minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute out of range in %q", ErrValidation, s)
	}

	return hour, minute, nil
}

func ParseReminderWhenFromString(s string) (ReminderWhen, error) {
	w := ReminderWhen(strings.ToUpper(strings.TrimSpace(s)))
	if !w.IsValid() {
		return "", fmt.Errorf("%w: invalid reminder time %q", ErrValidation, s)
	}
	return w, nil
}

// Resolve returns the wall-clock HH:MM this slot maps to, using the
// configured defaults for the named slots.
func (w ReminderWhen) Resolve(morning, evening string) string {
	switch w {
	case ReminderMorning:
		return morning
	case ReminderEvening:
		return evening
	}
	return string(w)
}

var phoneE164Re = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

func ValidatePhone(phone string) error {
	if !phoneE164Re.MatchString(phone) {
		return fmt.Errorf("%w: phone %q is not E.164", ErrValidation, phone)
	}
	return nil
}

// User is a family member tracked by the step counter. Consent and reminder
// preferences live here; the outbound path reads them, it never writes them
// except through the explicit consent operations.
type User struct {
	ID               int64
	Name             string
	PhoneE164        string
	PhoneOptedOut    bool
	RemindersEnabled bool
	RemindersWhen    ReminderWhen
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if u.PhoneE164 != "" {
		if err := ValidatePhone(u.PhoneE164); err != nil {
			return err
		}
	}
	if u.RemindersWhen != "" && !u.RemindersWhen.IsValid() {
		return fmt.Errorf("%w: invalid reminder time %q", ErrValidation, u.RemindersWhen)
	}
	return nil
}

// ConsentAction records a change of SMS consent.
type ConsentAction string

const (
	ConsentStop  ConsentAction = "STOP"
	ConsentStart ConsentAction = "START"
)

func (a ConsentAction) IsValid() bool {
	return a == ConsentStop || a == ConsentStart
}
