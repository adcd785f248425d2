package password

import (
	"regexp"
	"strings"
	"unicode"
)

// Policy describes the rules a new password must satisfy.
type Policy struct {
	MinLength     int
	MaxSimilarity float64
	// Common holds lower-cased passwords that are always rejected. A nil map
	// falls back to the built-in list.
	Common map[string]struct{}
}

// DefaultPolicy returns the policy applied to registrations and password
// changes.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		MaxSimilarity: 0.7,
	}
}

var attributeSplit = regexp.MustCompile(`\W+`)

// Check validates password and returns one message per failed rule. The
// attrs are the account's own values (email, username, first and last name);
// empty values are ignored.
func (p Policy) Check(password string, attrs ...string) []string {
	var problems []string

	if p.MinLength > 0 && len([]rune(password)) < p.MinLength {
		problems = append(problems, "password is too short")
	}
	if p.isCommon(password) {
		problems = append(problems, "password is too common")
	}
	if password != "" && isNumeric(password) {
		problems = append(problems, "password is entirely numeric")
	}
	if p.MaxSimilarity > 0 && p.tooSimilar(password, attrs) {
		problems = append(problems, "password is too similar to the account details")
	}

	return problems
}

func (p Policy) isCommon(password string) bool {
	common := p.Common
	if common == nil {
		common = commonPasswords
	}
	_, ok := common[strings.ToLower(strings.TrimSpace(password))]
	return ok
}

func (p Policy) tooSimilar(password string, attrs []string) bool {
	pw := strings.ToLower(password)
	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		candidates := append([]string{attr}, attributeSplit.Split(attr, -1)...)
		for _, part := range candidates {
			if part == "" {
				continue
			}
			if similarity(pw, part) >= p.MaxSimilarity {
				return true
			}
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// similarity is 2*LCS/(len(a)+len(b)), the same shape as a sequence-matcher
// ratio.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 0
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	return 2 * float64(prev[len(rb)]) / float64(len(ra)+len(rb))
}

var commonPasswords = toSet(
	"123456", "123456789", "12345678", "password", "qwerty", "qwerty123",
	"1234567890", "1234567", "password1", "12345", "123123", "111111",
	"abc123", "iloveyou", "1q2w3e4r", "000000", "qwertyuiop", "monkey",
	"dragon", "letmein", "football", "baseball", "sunshine", "princess",
	"welcome", "admin123", "passw0rd", "password123", "trustno1", "master",
	"superman", "starwars", "whatever", "zaq12wsx", "1qaz2wsx", "asdfghjkl",
	"michael", "shadow", "jennifer", "charlie", "hunter2", "changeme",
	"administrator", "qazwsxedc", "987654321", "88888888", "11111111",
	"access", "computer", "internet",
)

func toSet(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}
