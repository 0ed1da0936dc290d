package user

import (
	"regexp"
	"strings"
	"time"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Email Value object - immutable, normalized to lower case
type Email struct {
	value string
}

// NewEmail Create new Email value object
func NewEmail(email string) (Email, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !emailRegex.MatchString(email) {
		return Email{}, newValidationError(EntityName, "email", ErrInvalidEmail, email)
	}
	return Email{value: email}, nil
}

func (e Email) Value() string { return e.value }

func (e Email) Equals(other Email) bool { return e.value == other.value }

func (e Email) String() string { return e.value }

// DateLayout is the only accepted date-of-birth format.
const DateLayout = "2006-01-02"

// DateOfBirth is a calendar date without time of day. The zero value means
// "not provided".
type DateOfBirth struct {
	value string
}

func NewDateOfBirth(raw string) (DateOfBirth, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DateOfBirth{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return DateOfBirth{}, newValidationError(EntityName, "date_of_birth", ErrInvalidDateOfBirth, raw)
	}
	if t.After(time.Now()) {
		return DateOfBirth{}, newValidationError(EntityName, "date_of_birth", ErrInvalidDateOfBirth, "date is in the future")
	}
	return DateOfBirth{value: t.Format(DateLayout)}, nil
}

func (d DateOfBirth) String() string { return d.value }
func (d DateOfBirth) IsZero() bool   { return d.value == "" }

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ParseGender accepts an empty string as "not provided".
func ParseGender(raw string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(raw)))
	switch g {
	case "", GenderMale, GenderFemale, GenderOther:
		return g, nil
	}
	return "", newValidationError(EntityName, "gender", ErrInvalidGender, raw)
}

type Status string

const (
	StatusApplied  Status = "applied"
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus maps an empty string to StatusApplied.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case "":
		return StatusApplied, nil
	case StatusApplied, StatusPending, StatusActive, StatusInactive:
		return s, nil
	}
	return "", newValidationError(EntityName, "status", ErrInvalidStatus, raw)
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps an empty string to RoleUser.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case "":
		return RoleUser, nil
	case RoleAdmin, RoleUser:
		return r, nil
	}
	return "", newValidationError(EntityName, "role", ErrInvalidRole, raw)
}

type AuthCodeStatus string

const (
	AuthCodePending AuthCodeStatus = "pending"
	AuthCodeExpired AuthCodeStatus = "expired"
)

func ParseAuthCodeStatus(raw string) (AuthCodeStatus, error) {
	s := AuthCodeStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case AuthCodePending, AuthCodeExpired:
		return s, nil
	}
	return "", newValidationError(AuthCodeEntityName, "status", ErrInvalidAuthStatus, raw)
}
