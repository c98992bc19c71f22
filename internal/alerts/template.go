package alerts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRegex = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(?::\.(\d+)f)?\}`)

// RenderTemplate substitutes {field} placeholders in template with the
// event's fields. {field:.2f} formats numeric values with fixed precision.
// The subject is always available as {patient_id}. An unresolved
// placeholder is an error; the caller falls back to the raw template.
func RenderTemplate(template string, event Event) (string, error) {
	var missing []string
	rendered := placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		groups := placeholderRegex.FindStringSubmatch(match)
		name, precision := groups[1], groups[2]
		val, ok := event.Fields[name]
		if name == "patient_id" {
			val, ok = event.SubjectID, true
		}
		if !ok || val == nil {
			missing = append(missing, name)
			return match
		}
		return formatValue(val, precision)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
	}
	return rendered, nil
}

func formatValue(val any, precision string) string {
	if precision != "" {
		if f, err := toFloat(val); err == nil {
			digits, _ := strconv.Atoi(precision)
			return strconv.FormatFloat(f, 'f', digits, 64)
		}
	}
	return fmt.Sprint(val)
}

func toFloat(val any) (float64, error) {
	switch t := val.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(t, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", val)
	}
}
