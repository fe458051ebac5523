package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Scenario options arrive from config files (typed values) or from
// --scenario-option key=value flags (strings). The helpers below accept both.

func StringOption(opts map[string]any, key, def string) string {
	v, ok := opts[key]
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func IntOption(opts map[string]any, key string, def int) (int, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("option %q: invalid integer %q", key, t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("option %q: unsupported type %T", key, v)
	}
}

// DurationOption accepts Go duration strings ("250ms") or plain numbers
// interpreted as milliseconds.
func DurationOption(opts map[string]any, key string, def time.Duration) (time.Duration, error) {
	v, ok := opts[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return time.Duration(t) * time.Millisecond, nil
	case int64:
		return time.Duration(t) * time.Millisecond, nil
	case float64:
		return time.Duration(t * float64(time.Millisecond)), nil
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(n * float64(time.Millisecond)), nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("option %q: invalid duration %q", key, t)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("option %q: unsupported type %T", key, v)
	}
}

// StringSliceOption accepts a list or a comma separated string.
func StringSliceOption(opts map[string]any, key string) []string {
	v, ok := opts[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

// StringMapOption accepts a nested map from config files.
func StringMapOption(opts map[string]any, key string) map[string]string {
	v, ok := opts[key]
	if !ok || v == nil {
		return nil
	}
	out := make(map[string]string)
	switch t := v.(type) {
	case map[string]string:
		for k, val := range t {
			out[k] = val
		}
	case map[string]any:
		for k, val := range t {
			out[k] = fmt.Sprint(val)
		}
	default:
		return nil
	}
	return out
}
