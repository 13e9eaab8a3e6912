package transform

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// stringify converts any chained value to its string form; nil becomes ""
func stringify(value any) string {
	if value == nil {
		return ""
	}
	return cast.ToString(value)
}

func upperCase(value any, _ map[string]string, _ Params) any {
	return strings.ToUpper(stringify(value))
}

func lowerCase(value any, _ map[string]string, _ Params) any {
	return strings.ToLower(stringify(value))
}

var titleCaser = cases.Title(language.English)

func titleCase(value any, _ map[string]string, _ Params) any {
	return titleCaser.String(strings.ToLower(stringify(value)))
}

func trimSpace(value any, _ map[string]string, _ Params) any {
	return strings.TrimSpace(stringify(value))
}

// emailPattern is the minimal shape check applied before normalization
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// phonePattern accepts digits with optional "+" prefix and common
// separators, 7 to 15 significant characters.
var phonePattern = regexp.MustCompile(`^\+?[0-9\s\-()]{7,15}$`)

// ValidEmail reports whether s passes the same shape check the
// email_normalize transformation uses.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(strings.ToLower(s)))
}

// ValidPhone reports whether s looks like a dialable phone number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(strings.TrimSpace(s))
}

// emailNormalize lowercases and trims; values failing the shape check
// become "" rather than an error.
func emailNormalize(value any, _ map[string]string, _ Params) any {
	email := strings.TrimSpace(strings.ToLower(stringify(value)))
	if email == "" || !emailPattern.MatchString(email) {
		return ""
	}
	return email
}

// phoneInternational keeps digits and a leading "+". When the number has no
// country prefix and a default_country_code parameter is configured, the
// prefix is prepended.
func phoneInternational(value any, _ map[string]string, params Params) any {
	raw := strings.TrimSpace(stringify(value))
	if raw == "" {
		return ""
	}

	var sb strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			sb.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}

	phone := sb.String()
	if phone == "" || phone == "+" {
		return ""
	}
	if !strings.HasPrefix(phone, "+") {
		if cc := strings.TrimPrefix(params.String("default_country_code"), "+"); cc != "" {
			phone = "+" + cc + phone
		}
	}
	return phone
}
