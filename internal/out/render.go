package out

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"slices"
	"strings"

	"github.com/ggonzalez94/satsuma/internal/config"
	"github.com/ggonzalez94/satsuma/internal/execution"
	"github.com/ggonzalez94/satsuma/internal/model"
	"github.com/samber/lo"
)

// Render writes env in the configured output mode. Plain mode prints one
// human line per outcome and key=value lines for everything else.
func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}

	if settings.OutputMode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if settings.ResultsOnly {
			return enc.Encode(data)
		}
		env.Data = data
		return enc.Encode(env)
	}

	switch t := data.(type) {
	case execution.Outcome:
		return OutcomeLine(w, t)
	case []execution.Outcome:
		return HistoryTable(w, t)
	}
	if env.Error != nil {
		return ErrorLine(w, env.Error.Type, env.Error.Message)
	}
	return renderPlain(w, data)
}

func renderPlain(w io.Writer, data any) error {
	v := reflect.ValueOf(data)
	if !v.IsValid() {
		_, err := fmt.Fprintln(w, "null")
		return err
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			line, err := toLine(normalizeValue(v.Index(i).Interface()))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		if v.Len() == 0 {
			_, err := fmt.Fprintln(w, "[]")
			return err
		}
		return nil
	default:
		line, err := toLine(normalizeValue(data))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, line)
		return err
	}
}

// project keeps only the selected fields of an object or of every object in
// a list. Non-object values pass through unchanged.
func project(data any, fields []string) any {
	switch t := normalizeValue(data).(type) {
	case []any:
		items := lo.FilterMap(t, func(item any, _ int) (map[string]any, bool) {
			m, ok := item.(map[string]any)
			return m, ok
		})
		return lo.Map(items, func(m map[string]any, _ int) map[string]any {
			return lo.PickByKeys(m, fields)
		})
	case map[string]any:
		return lo.PickByKeys(t, fields)
	default:
		return t
	}
}

// normalizeValue round-trips v through JSON so structs are handled like the
// maps the JSON output would produce.
func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(buf, &out); err != nil {
		return v
	}
	return out
}

func toLine(v any) (string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		buf, err := json.Marshal(v)
		return string(buf), err
	}
	keys := lo.Keys(m)
	slices.Sort(keys)
	parts := lo.Map(keys, func(k string, _ int) string {
		return fmt.Sprintf("%s=%v", k, flatten(m[k]))
	})
	return strings.Join(parts, " "), nil
}

// flatten prints nested objects as compact JSON so each record stays on one
// line.
func flatten(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		if buf, err := json.Marshal(v); err == nil {
			return string(buf)
		}
	}
	return v
}
