package core

// convert.go turns caller-supplied values into normalized field values.
//
// These functions handle the messy reality of user-provided data:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value")
//
// Binding goes through the entity's FieldSpecs only. Keys that are not in the
// allow-list, or that name a derived field, are dropped.

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical date format for snapshots and the API.
const DateLayout = "2006-01-02"

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		DateLayout, time.RFC3339,
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

// ParseNumeric parses a number, tolerating currency symbols, thousands
// separators and accounting-style negatives "(123.45)".
func ParseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseDate parses a date in any supported layout and returns UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDate(t), true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return truncateDate(t), true
		}
	}

	return time.Time{}, false
}

// ParseBool accepts true/false, yes/no, t/f, y/n and 1/0.
func ParseBool(s string) (bool, bool) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	default:
		return false, false
	}
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CleanCell removes common spreadsheet artifacts from a value:
// surrounding whitespace, the Excel formula prefix (="...") and stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

// convertValue normalizes one raw value for spec. A nil result with a nil
// error means the caller cleared the field.
func convertValue(raw any, spec FieldSpec) (any, error) {
	if raw == nil {
		return nil, nil
	}

	// Reduce every raw input to either a typed value or a string.
	var s string
	switch v := raw.(type) {
	case string:
		s = CleanCell(v)
		if s == "" {
			return nil, nil
		}
	case json.Number:
		s = v.String()
	case float64:
		if spec.Type == FieldNumeric {
			return v, nil
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return convertValue(float64(v), spec)
	case int64:
		return convertValue(float64(v), spec)
	case bool:
		if spec.Type == FieldBool {
			return v, nil
		}
		s = strconv.FormatBool(v)
	case time.Time:
		if spec.Type == FieldDate {
			return truncateDate(v), nil
		}
		s = v.Format(DateLayout)
	default:
		return nil, fmt.Errorf("unsupported value type %T", raw)
	}

	switch spec.Type {
	case FieldNumeric:
		f, ok := ParseNumeric(s)
		if !ok {
			return nil, fmt.Errorf("invalid number format")
		}
		return f, nil
	case FieldDate:
		t, ok := ParseDate(s)
		if !ok {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD or similar)")
		}
		return t, nil
	case FieldBool:
		b, ok := ParseBool(s)
		if !ok {
			return nil, fmt.Errorf("must be yes/no, true/false, or 1/0")
		}
		return b, nil
	default:
		return s, nil
	}
}

// BindFields converts a raw candidate into normalized Fields through the
// entity's allow-list. Unknown and derived keys are ignored. Values that fail
// to convert are left out of the result and reported as blocking issues.
// Cleared fields (null or blank) are kept as nil entries so updates can
// distinguish "clear" from "not supplied".
func BindFields(def EntityDefinition, raw map[string]any) (Fields, []ValidationIssue) {
	bound := make(Fields, len(raw))
	var issues []ValidationIssue

	for key := range raw {
		if spec, ok := def.Field(key); !ok || spec.Derived {
			slog.Debug("ignoring field outside allow-list", "entity", def.Info.Key, "field", key)
		}
	}

	for _, spec := range def.FieldSpecs {
		value, present := raw[spec.Name]
		if !present || spec.Derived {
			continue
		}

		v, err := convertValue(value, spec)
		if err != nil {
			issues = append(issues, ValidationIssue{
				Field:    spec.Name,
				Message:  fmt.Sprintf("%s: %s", spec.DisplayLabel(), err.Error()),
				Severity: SeverityError,
			})
			continue
		}
		bound[spec.Name] = v
	}

	return bound, issues
}

// BindStrings is BindFields for string-valued input such as import rows.
func BindStrings(def EntityDefinition, raw map[string]string) (Fields, []ValidationIssue) {
	m := make(map[string]any, len(raw))
	for k, v := range raw {
		m[k] = v
	}
	return BindFields(def, m)
}
