// Password rules.
//
// The remote API hashes and stores passwords; the portal never does. What
// the portal owns is the policy a new password must meet before it is
// forwarded (registration and reset), and the strength meter the browser
// shows while the user types.
//
// RULES:
//   - 8 to 128 characters
//   - at least one uppercase letter, one lowercase letter, one digit and one
//     special character from SpecialCharacters
//   - none of the common patterns: "123456", "password", "qwerty",
//     "abc123" (case-insensitive apart from the digits) or a character
//     repeated four or more times in a row
//
// Passwords under 12 characters pass with a warning.

package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// SpecialCharacters are the characters that satisfy the special-character rule.
const SpecialCharacters = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

const (
	minPasswordLength         = 8
	maxPasswordLength         = 128
	recommendedPasswordLength = 12
)

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	commonRe  = regexp.MustCompile(`(?i)123456|password|qwerty|abc123`)
	patternRe = []struct {
		re  *regexp.Regexp
		msg string
	}{
		{regexp.MustCompile(`123456`), "Contains common number sequence (123456)"},
		{regexp.MustCompile(`(?i)password`), "Contains the word 'password'"},
		{regexp.MustCompile(`(?i)qwerty`), "Contains keyboard pattern 'qwerty'"},
		{regexp.MustCompile(`(?i)abc123`), "Contains common pattern 'abc123'"},
	}
)

// StrengthLevel buckets a strength score.
type StrengthLevel string

const (
	VeryWeak   StrengthLevel = "very-weak"
	Weak       StrengthLevel = "weak"
	Medium     StrengthLevel = "medium"
	Strong     StrengthLevel = "strong"
	VeryStrong StrengthLevel = "very-strong"
)

// Strength is the meter reading for a password.
type Strength struct {
	Score      int           `json:"score"`
	Level      StrengthLevel `json:"level"`
	Percentage int           `json:"percentage"`
}

// PasswordCheck is the full result of checking a password against the rules.
type PasswordCheck struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Strength Strength `json:"strength"`
}

// CheckPassword applies every rule and reports all failures, not just the first.
func CheckPassword(pw string) PasswordCheck {
	res := PasswordCheck{Errors: []string{}, Warnings: []string{}}
	if pw == "" {
		res.Errors = append(res.Errors, "Password is required")
		res.Strength = PasswordStrength("")
		return res
	}

	n := utf8.RuneCountInString(pw)
	if n < minPasswordLength {
		res.Errors = append(res.Errors, "Password must be at least 8 characters long")
	}
	if n > maxPasswordLength {
		res.Errors = append(res.Errors, "Password must be less than 128 characters long")
	}
	if !upperRe.MatchString(pw) {
		res.Errors = append(res.Errors, "Password must contain at least one uppercase letter")
	}
	if !lowerRe.MatchString(pw) {
		res.Errors = append(res.Errors, "Password must contain at least one lowercase letter")
	}
	if !digitRe.MatchString(pw) {
		res.Errors = append(res.Errors, "Password must contain at least one number")
	}
	if !hasSpecial(pw) {
		res.Errors = append(res.Errors, "Password must contain at least one special character")
	}
	for _, p := range patternRe {
		if p.re.MatchString(pw) {
			res.Errors = append(res.Errors, p.msg)
		}
	}
	if longestRun(pw) >= 4 {
		res.Errors = append(res.Errors, "Contains too many repeated characters")
	}

	if n < recommendedPasswordLength {
		res.Warnings = append(res.Warnings, "Consider using a longer password (12+ characters) for better security")
	}

	res.Valid = len(res.Errors) == 0
	res.Strength = PasswordStrength(pw)
	return res
}

// PasswordStrength scores a password for the strength meter.
func PasswordStrength(pw string) Strength {
	score := 0
	n := utf8.RuneCountInString(pw)
	if n >= 12 {
		score += 2
	}
	if n >= 16 {
		score++
	}
	if n >= 20 {
		score++
	}

	variety := 0
	if lowerRe.MatchString(pw) {
		score++
		variety++
	}
	if upperRe.MatchString(pw) {
		score++
		variety++
	}
	if digitRe.MatchString(pw) {
		score++
		variety++
	}
	if hasSpecial(pw) {
		score += 2
		variety++
	}
	if variety >= 3 {
		score++
	}
	if variety == 4 {
		score++
	}

	if commonRe.MatchString(pw) {
		score -= 2
	}
	if longestRun(pw) >= 3 {
		score--
	}

	s := Strength{Score: score, Level: VeryWeak}
	switch {
	case score >= 8:
		s.Level = VeryStrong
	case score >= 6:
		s.Level = Strong
	case score >= 4:
		s.Level = Medium
	case score >= 2:
		s.Level = Weak
	}
	s.Percentage = min(max(score*10, 10), 100)
	return s
}

func hasSpecial(pw string) bool {
	return strings.ContainsAny(pw, SpecialCharacters)
}

// longestRun returns the length of the longest run of one repeated character.
// Go's regexp has no backreferences, so (.)\1{n,} is counted by hand.
func longestRun(pw string) int {
	best, run := 0, 0
	var prev rune
	for i, r := range pw {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		prev = r
		best = max(best, run)
	}
	return best
}
