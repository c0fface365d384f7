package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"ledger/internal/ids"
)

var (
	ErrInvalidEmail         = errors.New("invalid email")
	ErrInvalidPassword      = errors.New("password must be at least 8 characters")
	ErrInvalidAccountNumber = errors.New("account number must be 16 digits")
	ErrNoteTooLong          = errors.New("note is too long")
)

const MaxNoteLength = 140

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

// ValidateAccountNumber accepts an empty number, which asks the ledger to generate one.
func ValidateAccountNumber(number string) error {
	if number == "" || ids.ValidAccountNumber(number) {
		return nil
	}
	return ErrInvalidAccountNumber
}

func ValidateNote(note string) error {
	if len([]rune(note)) > MaxNoteLength {
		return ErrNoteTooLong
	}
	return nil
}

const (
	MaxNameLength    = 50
	MaxPhoneLength   = 15
	MaxAddressLength = 200
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 -]*$`)

// FieldError names the profile field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Reason
}

// ValidateProfile checks field lengths and the phone format. Every field is optional.
func ValidateProfile(firstName, lastName, phone, address string) error {
	lengths := []struct {
		field string
		value string
		max   int
	}{
		{"first_name", firstName, MaxNameLength},
		{"last_name", lastName, MaxNameLength},
		{"phone", phone, MaxPhoneLength},
		{"address", address, MaxAddressLength},
	}
	for _, check := range lengths {
		if len([]rune(check.value)) > check.max {
			return &FieldError{Field: check.field, Reason: fmt.Sprintf("must be at most %d characters", check.max)}
		}
	}
	if phone != "" && !phoneRegex.MatchString(phone) {
		return &FieldError{Field: "phone", Reason: "must contain only digits and separators"}
	}
	return nil
}
