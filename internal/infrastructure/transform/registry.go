// Package transform provides the named transformation catalogue applied to
// cell values during mapping. Every transformation is pure: identical inputs
// produce identical outputs, and unparsable input yields a documented safe
// default instead of an error.
package transform

import (
	"fmt"

	"github.com/spf13/cast"
)

// Params holds the configured parameters of one transformation step
type Params map[string]any

// String returns a string parameter, or "" when absent
func (p Params) String(key string) string {
	return cast.ToString(p[key])
}

// Int returns an integer parameter, or def when absent or unparsable
func (p Params) Int(key string, def int) int {
	if _, ok := p[key]; !ok {
		return def
	}
	if v, err := cast.ToIntE(p[key]); err == nil {
		return v
	}
	return def
}

// StringSlice returns a string-slice parameter
func (p Params) StringSlice(key string) []string {
	return cast.ToStringSlice(p[key])
}

// StringMap returns a map parameter with stringified values
func (p Params) StringMap(key string) map[string]string {
	return cast.ToStringMapString(p[key])
}

// Func is a single transformation step. value is the current chained value;
// row exposes the raw source row for the transformations that read sibling
// fields (concat, conditional). Implementations must not panic on any input.
type Func func(value any, row map[string]string, params Params) any

// TransformError records a transformation step that failed unexpectedly.
// The pipeline attaches it to the row and keeps the pre-transformation value.
type TransformError struct {
	Name  string
	Value any
	Cause any
}

// Error implements the error interface
func (e *TransformError) Error() string {
	return fmt.Sprintf("transformation %q failed on %v: %v", e.Name, e.Value, e.Cause)
}

// Registry is an immutable name->handler lookup table built once at startup.
// Lookups for unknown names report ok=false so callers can warn without
// breaking existing configurations.
type Registry struct {
	funcs map[string]Func
}

// NewRegistry builds the registry with the full built-in catalogue
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}

	// text
	r.register("uppercase", upperCase)
	r.register("lowercase", lowerCase)
	r.register("title_case", titleCase)
	r.register("trim", trimSpace)
	r.register("email_normalize", emailNormalize)
	r.register("phone_international", phoneInternational)

	// numeric
	r.register("to_float", toFloat)
	r.register("to_integer", toInteger)
	r.register("to_decimal", toDecimal)

	// temporal
	r.register("date_iso", dateISO)
	r.register("date_us", dateUS)
	r.register("date_european", dateEuropean)

	// boolean
	r.register("to_boolean", toBoolean)
	r.register("yes_no_to_boolean", toBoolean)
	r.register("one_zero_to_boolean", toBoolean)

	// row-aware
	r.register("concat", concatFields)
	r.register("conditional", conditional)
	r.register("lookup", lookupTable)

	return r
}

func (r *Registry) register(name string, fn Func) {
	r.funcs[name] = fn
}

// Has reports whether a transformation name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered transformation names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

// Apply runs one named transformation. Unknown names leave the value
// unchanged (ok=false). A panicking handler is recovered into a
// TransformError and the input value is returned, so one bad step can
// never abort a row.
func (r *Registry) Apply(name string, value any, row map[string]string, params Params) (result any, ok bool, err error) {
	fn, found := r.funcs[name]
	if !found {
		return value, false, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = value
			err = &TransformError{Name: name, Value: value, Cause: rec}
		}
	}()

	return fn(value, row, params), true, nil
}
