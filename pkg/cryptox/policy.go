package cryptox

import (
	_ "embed"
	"strings"
	"sync"
	"unicode"
)

// Minimum acceptable password length.
const MinPasswordLength = 8

// Human-readable rule failures returned by ValidatePassword. Callers surface
// these verbatim so users know exactly which rule they missed.
const (
	RuleTooShort    = "password must be at least 8 characters"
	RuleNeedsLetter = "password must contain at least one letter"
	RuleNeedsDigit  = "password must contain at least one digit"
	RuleCommon      = "password is too common"
)

//go:embed common_passwords.txt
var commonPasswordsRaw string

var (
	denylistOnce sync.Once
	denylist     map[string]struct{}
)

func loadDenylist() {
	lines := strings.Split(commonPasswordsRaw, "\n")
	denylist = make(map[string]struct{}, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		denylist[strings.ToLower(line)] = struct{}{}
	}
}

// ValidatePassword checks the password against the strength policy and the
// common-password denylist. It returns every unmet rule, not just the first,
// so the caller can report all of them at once. An empty slice means valid.
func ValidatePassword(password string) []string {
	denylistOnce.Do(loadDenylist)

	var reasons []string

	if len(password) < MinPasswordLength {
		reasons = append(reasons, RuleTooShort)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		reasons = append(reasons, RuleNeedsLetter)
	}
	if !hasDigit {
		reasons = append(reasons, RuleNeedsDigit)
	}

	if _, banned := denylist[strings.ToLower(password)]; banned {
		reasons = append(reasons, RuleCommon)
	}

	return reasons
}
