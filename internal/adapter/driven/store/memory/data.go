package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/matej-benes/mos-family-c/internal/core/domain"
	"github.com/matej-benes/mos-family-c/internal/core/port"
)

func checkDocPath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segs, err := segments(path)
	if err != nil {
		return err
	}
	if len(segs)%2 != 0 {
		return fmt.Errorf("%w: %q is not a document path", domain.ErrInvalid, path)
	}
	return nil
}

func checkCollectionPath(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	segs, err := segments(path)
	if err != nil {
		return err
	}
	if len(segs)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", domain.ErrInvalid, path)
	}
	return nil
}

func segments(path string) ([]string, error) {
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", domain.ErrInvalid, path)
		}
	}
	return segs, nil
}

func parentPath(path string) string {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return ""
	}
	return path[:i]
}

func lastSegment(path string) string {
	return path[strings.LastIndex(path, "/")+1:]
}

// mergeInto writes src over dst, merging nested maps and resolving
// transforms against the values already in dst.
func mergeInto(dst, src map[string]any, now time.Time) map[string]any {
	for key, value := range src {
		if nested, ok := value.(map[string]any); ok {
			existing, _ := dst[key].(map[string]any)
			if existing == nil {
				existing = map[string]any{}
			}
			dst[key] = mergeInto(existing, nested, now)
			continue
		}
		resolved, keep := resolve(value, dst[key], now)
		if keep {
			dst[key] = resolved
		} else {
			delete(dst, key)
		}
	}
	return dst
}

// setPath writes value at a dotted field path, creating maps on the way.
func setPath(m map[string]any, keys []string, value any, now time.Time) {
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	last := keys[len(keys)-1]
	if nested, ok := value.(map[string]any); ok {
		m[last] = mergeInto(map[string]any{}, nested, now)
		return
	}
	resolved, keep := resolve(value, m[last], now)
	if keep {
		m[last] = resolved
	} else {
		delete(m, last)
	}
}

// resolve turns a written value into the stored one. keep is false when
// the field must be removed.
func resolve(value, existing any, now time.Time) (any, bool) {
	t, ok := value.(port.Transform)
	if !ok {
		return normalize(value), true
	}
	switch t.Kind {
	case port.TransformServerTimestamp:
		return now, true
	case port.TransformDelete:
		return nil, false
	case port.TransformArrayUnion:
		arr, _ := existing.([]any)
		out := append([]any{}, arr...)
		for _, v := range t.Values {
			v = normalize(v)
			if !containsValue(out, v) {
				out = append(out, v)
			}
		}
		return out, true
	case port.TransformArrayRemove:
		arr, _ := existing.([]any)
		out := []any{}
		for _, v := range arr {
			if !containsValue(normalizeAll(t.Values), v) {
				out = append(out, v)
			}
		}
		return out, true
	default:
		return existing, existing != nil
	}
}

// normalize maps Go values onto the JSON value space so that typed strings
// and slices compare equal to what decoding produces. Times stay times.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, float64, time.Time:
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalize(val)
		}
		return out
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func normalizeAll(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = normalize(v)
	}
	return out
}

func containsValue(values []any, v any) bool {
	for _, x := range values {
		if reflect.DeepEqual(x, v) {
			return true
		}
	}
	return false
}

func lookup(data map[string]any, field string) (any, bool) {
	var cur any = data
	for _, k := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func matches(data map[string]any, filters []port.Filter) bool {
	for _, f := range filters {
		v, ok := lookup(data, f.Field)
		want := normalize(f.Value)
		switch f.Op {
		case port.OpEqual:
			if !ok || !reflect.DeepEqual(v, want) {
				return false
			}
		case port.OpNotEqual:
			if !ok || reflect.DeepEqual(v, want) {
				return false
			}
		case port.OpArrayContains:
			arr, isArr := v.([]any)
			if !isArr || !containsValue(arr, want) {
				return false
			}
		case port.OpIn:
			options, isArr := want.([]any)
			if !ok || !isArr || !containsValue(options, v) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compare orders values of the same kind; missing values sort first.
func compare(a, b any) int {
	switch x := a.(type) {
	case nil:
		if b == nil {
			return 0
		}
		return -1
	case float64:
		if y, ok := b.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	}
	if b == nil {
		return 1
	}
	return 0
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return x
	}
}
