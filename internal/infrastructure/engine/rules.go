package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/erpbridge/backend/internal/infrastructure/transform"
)

// ruleSpec normalizes the two accepted JSON shapes of a rule:
//
//	"min_length": 5
//	"min_length": {"value": 5, "severity": "warning", "message": "too short"}
type ruleSpec struct {
	Value    any
	Severity Severity
	Message  string
}

// defaultRuleSeverity lists rules that do not reject a record by default.
// Everything absent defaults to SeverityError.
var defaultRuleSeverity = map[string]Severity{
	"phone": SeverityWarning,
}

func parseRuleSpec(name string, raw any) ruleSpec {
	severity := SeverityError
	if s, ok := defaultRuleSeverity[name]; ok {
		severity = s
	}
	spec := ruleSpec{Value: raw, Severity: severity}

	obj, ok := raw.(map[string]any)
	if !ok {
		return spec
	}
	if v, has := obj["value"]; has {
		spec.Value = v
	} else {
		spec.Value = nil
	}
	switch Severity(cast.ToString(obj["severity"])) {
	case SeverityError:
		spec.Severity = SeverityError
	case SeverityWarning:
		spec.Severity = SeverityWarning
	case SeverityInfo:
		spec.Severity = SeverityInfo
	}
	spec.Message = cast.ToString(obj["message"])
	return spec
}

var ruleCatalogue = map[string]bool{
	"required":     true,
	"not_empty":    true,
	"min_length":   true,
	"max_length":   true,
	"exact_length": true,
	"regex":        true,
	"alphanumeric": true,
	"numeric":      true,
	"integer":      true,
	"min_value":    true,
	"max_value":    true,
	"positive":     true,
	"negative":     true,
	"date":         true,
	"min_date":     true,
	"max_date":     true,
	"email":        true,
	"phone":        true,
	"in_list":      true,
	"not_in_list":  true,
	"unique":       true,
}

// knownRule reports whether name is part of the rule catalogue
func knownRule(name string) bool {
	return ruleCatalogue[name]
}

// appliesToEmpty lists the rules evaluated against empty values. Every
// other rule is skipped when the field is empty so that optional fields
// never fail format checks.
var appliesToEmpty = map[string]bool{
	"required":  true,
	"not_empty": true,
}

var alphanumericPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// checkRule evaluates one rule against a value and returns a failure
// message, or "" when the rule passes. Unknown rules pass. The seen set
// backs the unique rule and may be nil.
func checkRule(name string, spec ruleSpec, value any, seen map[string]bool, patterns *patternCache) string {
	str := strings.TrimSpace(cast.ToString(value))

	switch name {
	case "required":
		if isEmptyValue(value) {
			return "is required"
		}
	case "not_empty":
		if str == "" {
			return "must not be empty"
		}
	case "min_length":
		if min := cast.ToInt(spec.Value); utf8.RuneCountInString(str) < min {
			return fmt.Sprintf("must be at least %d characters", min)
		}
	case "max_length":
		if max := cast.ToInt(spec.Value); utf8.RuneCountInString(str) > max {
			return fmt.Sprintf("must be at most %d characters", max)
		}
	case "exact_length":
		if want := cast.ToInt(spec.Value); utf8.RuneCountInString(str) != want {
			return fmt.Sprintf("must be exactly %d characters", want)
		}
	case "regex":
		pattern := cast.ToString(spec.Value)
		re, err := patterns.get(pattern)
		if err != nil {
			return fmt.Sprintf("has an invalid pattern %q", pattern)
		}
		if !re.MatchString(str) {
			return fmt.Sprintf("does not match pattern %q", pattern)
		}
	case "alphanumeric":
		if ruleEnabled(spec.Value) && !alphanumericPattern.MatchString(str) {
			return "must contain only letters and digits"
		}
	case "numeric":
		if ruleEnabled(spec.Value) {
			if _, err := decimal.NewFromString(str); err != nil {
				return "must be a number"
			}
		}
	case "integer":
		if ruleEnabled(spec.Value) {
			if _, err := strconv.ParseInt(str, 10, 64); err != nil {
				return "must be an integer"
			}
		}
	case "min_value":
		v, err := decimal.NewFromString(str)
		if err != nil {
			return "must be a number"
		}
		min, err := decimal.NewFromString(cast.ToString(spec.Value))
		if err == nil && v.LessThan(min) {
			return fmt.Sprintf("must be at least %s", min)
		}
	case "max_value":
		v, err := decimal.NewFromString(str)
		if err != nil {
			return "must be a number"
		}
		max, err := decimal.NewFromString(cast.ToString(spec.Value))
		if err == nil && v.GreaterThan(max) {
			return fmt.Sprintf("must be at most %s", max)
		}
	case "positive":
		if ruleEnabled(spec.Value) {
			v, err := decimal.NewFromString(str)
			if err != nil {
				return "must be a number"
			}
			if v.Sign() <= 0 {
				return "must be positive"
			}
		}
	case "negative":
		if ruleEnabled(spec.Value) {
			v, err := decimal.NewFromString(str)
			if err != nil {
				return "must be a number"
			}
			if v.Sign() >= 0 {
				return "must be negative"
			}
		}
	case "date":
		if ruleEnabled(spec.Value) {
			if _, ok := transform.ParseDate(str); !ok {
				return "must be a valid date"
			}
		}
	case "min_date":
		v, ok := transform.ParseDate(str)
		if !ok {
			return "must be a valid date"
		}
		if bound, ok := transform.ParseDate(cast.ToString(spec.Value)); ok && v.Before(bound) {
			return fmt.Sprintf("must not be before %s", bound.Format("2006-01-02"))
		}
	case "max_date":
		v, ok := transform.ParseDate(str)
		if !ok {
			return "must be a valid date"
		}
		if bound, ok := transform.ParseDate(cast.ToString(spec.Value)); ok && v.After(bound) {
			return fmt.Sprintf("must not be after %s", bound.Format("2006-01-02"))
		}
	case "email":
		if ruleEnabled(spec.Value) && !transform.ValidEmail(str) {
			return "must be a valid email address"
		}
	case "phone":
		if ruleEnabled(spec.Value) && !transform.ValidPhone(str) {
			return "must be a valid phone number"
		}
	case "in_list":
		allowed := cast.ToStringSlice(spec.Value)
		if len(allowed) > 0 && !containsString(allowed, str) {
			return fmt.Sprintf("must be one of %s", strings.Join(allowed, ", "))
		}
	case "not_in_list":
		forbidden := cast.ToStringSlice(spec.Value)
		if containsString(forbidden, str) {
			return fmt.Sprintf("must not be one of %s", strings.Join(forbidden, ", "))
		}
	case "unique":
		if ruleEnabled(spec.Value) && seen[str] {
			return "is duplicated"
		}
	}
	return ""
}

// ruleEnabled interprets boolean-style rule values, where `"numeric": true`
// switches the rule on and `false` disables it without removing the key
func ruleEnabled(value any) bool {
	if value == nil {
		return true
	}
	if b, err := cast.ToBoolE(value); err == nil {
		return b
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
