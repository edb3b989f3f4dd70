package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// PasswordPolicy describes the rules a new password must satisfy.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
	PreventCommon    bool
}

// DefaultPasswordPolicy returns the policy applied to all account passwords.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        MinPasswordLength,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
		PreventCommon:    true,
	}
}

var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"12345678":    {},
	"123456789":   {},
	"qwerty123":   {},
	"admin123":    {},
	"letmein123":  {},
	"iloveyou1":   {},
	"welcome123":  {},
}

// Validate returns ErrWeakPassword wrapped with every rule the password breaks.
func (p PasswordPolicy) Validate(password string) error {
	var violations []string

	length := len([]rune(password))
	if length < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		violations = append(violations, fmt.Sprintf("must be at most %d characters", p.MaxLength))
	}

	classes := classify(password)
	if p.RequireUppercase && !classes.upper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if p.RequireLowercase && !classes.lower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if p.RequireNumber && !classes.digit {
		violations = append(violations, "must contain a number")
	}
	if p.RequireSpecial && !classes.special {
		violations = append(violations, "must contain a special character")
	}
	if p.PreventCommon {
		if _, ok := commonPasswords[strings.ToLower(password)]; ok {
			violations = append(violations, "is too common")
		}
	}

	if len(violations) > 0 {
		return fmt.Errorf("%w: password %s", ErrWeakPassword, strings.Join(violations, ", "))
	}

	return nil
}

type charClasses struct {
	upper, lower, digit, special bool
}

func classify(s string) charClasses {
	var c charClasses
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			c.upper = true
		case unicode.IsLower(r):
			c.lower = true
		case unicode.IsDigit(r):
			c.digit = true
		default:
			c.special = true
		}
	}
	return c
}

// Strength levels reported by CheckPasswordStrength.
const (
	StrengthWeak   = "weak"
	StrengthMedium = "medium"
	StrengthStrong = "strong"
)

// Strength is the result of a password strength check.
type Strength struct {
	Score    int
	Level    string
	Feedback []string
}

var commonPatterns = regexp.MustCompile(`(?i)12345|qwerty|password`)

// CheckPasswordStrength scores a password for display to the user. It never rejects;
// use PasswordPolicy.Validate for enforcement.
func CheckPasswordStrength(password string) Strength {
	var s Strength
	length := len([]rune(password))

	for _, n := range []int{8, 12, 16} {
		if length >= n {
			s.Score++
		}
	}

	classes := classify(password)
	for _, ok := range []bool{classes.lower, classes.upper, classes.digit, classes.special} {
		if ok {
			s.Score++
		}
	}

	if !hasRepeatedRun(password) {
		s.Score++
	}
	if !commonPatterns.MatchString(password) {
		s.Score++
	}

	if length < 8 {
		s.Feedback = append(s.Feedback, "Password should be at least 8 characters")
	}
	if !classes.lower || !classes.upper {
		s.Feedback = append(s.Feedback, "Include both uppercase and lowercase letters")
	}
	if !classes.digit {
		s.Feedback = append(s.Feedback, "Include at least one number")
	}
	if !classes.special {
		s.Feedback = append(s.Feedback, "Include at least one special character")
	}

	switch {
	case s.Score >= 8:
		s.Level = StrengthStrong
	case s.Score >= 5:
		s.Level = StrengthMedium
	default:
		s.Level = StrengthWeak
	}

	return s
}

// hasRepeatedRun reports three identical consecutive characters. RE2 has no
// backreferences, so the scan is done by hand.
func hasRepeatedRun(s string) bool {
	runes := []rune(s)
	for i := 2; i < len(runes); i++ {
		if runes[i] == runes[i-1] && runes[i] == runes[i-2] {
			return true
		}
	}
	return false
}
