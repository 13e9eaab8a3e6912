package engine

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// patternCache compiles user-supplied regex rules once per pattern. A
// validator is shared across concurrently running import jobs.
type patternCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

func (c *patternCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.compiled[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.compiled == nil {
		c.compiled = make(map[string]*regexp.Regexp)
	}
	c.compiled[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// UniqueTracker records values already observed per field. The unique rule
// checks against it before the current value is recorded, so the first
// occurrence passes and every repeat fails.
type UniqueTracker map[string]map[string]bool

// NewUniqueTracker creates a tracker optionally pre-seeded with values that
// already exist in the target ERP system.
func NewUniqueTracker(existing map[string][]string) UniqueTracker {
	t := make(UniqueTracker, len(existing))
	for field, values := range existing {
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		t[field] = set
	}
	return t
}

func (t UniqueTracker) seen(field string) map[string]bool {
	return t[field]
}

func (t UniqueTracker) record(field, value string) {
	if value == "" {
		return
	}
	if t[field] == nil {
		t[field] = make(map[string]bool)
	}
	t[field][value] = true
}

// Validator evaluates the validation rules of a mapping configuration
// against mapped records. Every configured rule runs; findings accumulate
// instead of short-circuiting on the first failure.
type Validator struct {
	logger   *zap.Logger
	patterns patternCache
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger
func WithValidatorLogger(logger *zap.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator creates a Validator
func NewValidator(opts ...ValidatorOption) *Validator {
	v := &Validator{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateRecord evaluates every configured rule against one record and
// returns all findings across all severities. The tracker carries
// uniqueness state across the whole batch and may be nil.
func (v *Validator) ValidateRecord(lineNumber int, record MappedRecord, cfg *MappingConfig, tracker UniqueTracker) []Issue {
	var issues []Issue

	for _, field := range sortedKeys(cfg.ValidationRules) {
		value := record[field]
		issues = append(issues, v.validateField(lineNumber, field, value, cfg.ValidationRules[field], tracker)...)
		if tracker != nil {
			if _, hasUnique := cfg.ValidationRules[field]["unique"]; hasUnique {
				tracker.record(field, cast.ToString(value))
			}
		}
	}

	if cfg.DocumentRules != nil {
		issues = append(issues, v.validateDocument(lineNumber, record, cfg.DocumentRules)...)
	}

	return issues
}

// validateField runs one field's rule set in deterministic rule-name order
func (v *Validator) validateField(lineNumber int, fieldPath string, value any, rules RuleSet, tracker UniqueTracker) []Issue {
	var issues []Issue
	empty := isEmptyValue(value)

	for _, name := range sortedKeys(rules) {
		if !knownRule(name) {
			v.logger.Warn("skipping unknown validation rule",
				zap.String("field", fieldPath),
				zap.String("rule", name),
			)
			continue
		}
		if empty && !appliesToEmpty[name] {
			continue
		}

		spec := parseRuleSpec(name, rules[name])

		var seen map[string]bool
		if name == "unique" && tracker != nil {
			seen = tracker.seen(fieldPath)
		}

		failure := checkRule(name, spec, value, seen, &v.patterns)
		if failure == "" {
			continue
		}
		message := spec.Message
		if message == "" {
			message = fmt.Sprintf("%s %s", fieldPath, failure)
		}
		issues = append(issues, Issue{
			Row:      lineNumber,
			Field:    fieldPath,
			Rule:     name,
			Message:  message,
			Severity: spec.Severity,
		})
	}

	return issues
}

// HasErrors reports whether any finding carries error severity
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
