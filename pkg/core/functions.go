package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

const defaultDateFormat = "%Y-%m-%d"

// UserFunction computes a user parameter value from already evaluated arguments.
type UserFunction func(args []any) (any, error)

var userFunctions = map[string]UserFunction{
	"string_to_date": stringToDate,
	"concat":         concat,
}

// SupportedFunctions lists the user function names in sorted order.
func SupportedFunctions() []string {
	names := make([]string, 0, len(userFunctions))
	for name := range userFunctions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnsupportedFunctionError is returned for a function name outside the supported set.
type UnsupportedFunctionError struct {
	Name      string
	Supported []string
}

func (e *UnsupportedFunctionError) Error() string {
	return fmt.Sprintf("user function %q is not supported, supported functions are: %s", e.Name, strings.Join(e.Supported, ", "))
}

func callFunction(name string, args []any) (any, error) {
	fn, ok := userFunctions[name]
	if !ok {
		return nil, &UnsupportedFunctionError{Name: name, Supported: SupportedFunctions()}
	}
	v, err := fn(args)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", name, err)
	}
	return v, nil
}

func stringToDate(args []any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("expected 1 or 2 arguments (date_string, date_format), got %d", len(args))
	}
	expr, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("date_string must be a string, got %T", args[0])
	}
	format := defaultDateFormat
	if len(args) == 2 {
		if format, ok = args[1].(string); !ok {
			return nil, fmt.Errorf("date_format must be a string, got %T", args[1])
		}
	}
	return StringToDate(expr, format, time.Now())
}

func concat(args []any) (any, error) {
	var sb strings.Builder
	for _, arg := range args {
		sb.WriteString(stringify(arg))
	}
	return sb.String(), nil
}

var relativeDate = regexp.MustCompile(`^(-)?\s*(\d+)\s+(second|minute|hour|day|week|month|year)s?(\s+ago)?$`)

// StringToDate parses a relative or absolute date expression against now and
// formats it with strftime directives.
func StringToDate(expr, format string, now time.Time) (string, error) {
	t, err := parseDateExpression(expr, now)
	if err != nil {
		return "", err
	}
	return strftime.Format(format, t), nil
}

func parseDateExpression(expr string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	switch s {
	case "now", "today":
		return now, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1), nil
	}

	if m := relativeDate.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid amount in %q: %w", expr, err)
		}
		if m[1] == "-" || m[4] != "" {
			n = -n
		}
		switch m[3] {
		case "second":
			return now.Add(time.Duration(n) * time.Second), nil
		case "minute":
			return now.Add(time.Duration(n) * time.Minute), nil
		case "hour":
			return now.Add(time.Duration(n) * time.Hour), nil
		case "day":
			return now.AddDate(0, 0, n), nil
		case "week":
			return now.AddDate(0, 0, 7*n), nil
		case "month":
			return now.AddDate(0, n, 0), nil
		default:
			return now.AddDate(n, 0, 0), nil
		}
	}

	for _, layout := range []string{time.DateOnly, time.DateTime, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(expr), now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", expr)
}
