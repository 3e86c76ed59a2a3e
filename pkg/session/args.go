package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Arguments gives typed access to the positional and keyword arguments of a
// dispatched method. Keyword arguments win over positional ones.
type Arguments struct {
	Method string
	Args   []any
	Kwargs map[string]any
}

// Value returns the raw argument given by keyword name or at position i.
func (a Arguments) Value(i int, name string) (any, bool) {
	if v, ok := a.Kwargs[name]; ok {
		return v, true
	}
	if i >= 0 && i < len(a.Args) {
		return a.Args[i], true
	}
	return nil, false
}

// Has reports whether the argument was given.
func (a Arguments) Has(i int, name string) bool {
	_, ok := a.Value(i, name)
	return ok
}

func (a Arguments) String(i int, name string) (string, error) {
	v, ok := a.Value(i, name)
	if !ok {
		return "", fmt.Errorf("%s: missing argument %q", a.Method, name)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func (a Arguments) Int(i int, name string) (int, error) {
	f, err := a.Float(i, name)
	return int(f), err
}

func (a Arguments) Float(i int, name string) (float64, error) {
	v, ok := a.Value(i, name)
	if !ok {
		return 0, fmt.Errorf("%s: missing argument %q", a.Method, name)
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%s: argument %q must be a number: %w", a.Method, name, err)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%s: argument %q must be a number, got %T", a.Method, name, v)
}

// Joined concatenates every positional argument, the way keys are sent.
func (a Arguments) Joined() string {
	var sb strings.Builder
	for _, v := range a.Args {
		sb.WriteString(fmt.Sprint(v))
	}
	return sb.String()
}

// Rest returns the positional arguments from index i on.
func (a Arguments) Rest(i int) []any {
	if i >= len(a.Args) {
		return nil
	}
	return a.Args[i:]
}

// UnsupportedMethodError is returned by backends for methods they cannot dispatch.
type UnsupportedMethodError struct {
	Target string
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("%s method %q is not supported", e.Target, e.Method)
}
