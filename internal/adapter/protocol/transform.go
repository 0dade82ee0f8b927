package protocol

import (
	"fmt"

	"github.com/matej-benes/mos-family-c/internal/core/port"
)

const transformKey = "$transform"

// EncodeData replaces field transforms with {"$transform": kind, "values": [...]}
// objects so they survive JSON.
func EncodeData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) any {
	switch t := v.(type) {
	case port.Transform:
		obj := map[string]any{transformKey: string(t.Kind)}
		if len(t.Values) > 0 {
			obj["values"] = t.Values
		}
		return obj
	case map[string]any:
		return EncodeData(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encodeValue(e)
		}
		return out
	}
	return v
}

// DecodeData is the inverse of EncodeData for data read off the wire.
func DecodeData(data map[string]any) (map[string]any, error) {
	if data == nil {
		return nil, nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		d, err := decodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = d
	}
	return out, nil
}

func decodeValue(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		kind, ok := t[transformKey]
		if !ok {
			return DecodeData(t)
		}
		return decodeTransform(kind, t["values"])
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			d, err := decodeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	}
	return v, nil
}

func decodeTransform(kind, values any) (any, error) {
	s, _ := kind.(string)
	var vals []any
	if values != nil {
		list, ok := values.([]any)
		if !ok {
			return nil, fmt.Errorf("transform values must be a list")
		}
		vals = list
	}

	switch port.TransformKind(s) {
	case port.TransformServerTimestamp:
		return port.ServerTimestamp, nil
	case port.TransformDelete:
		return port.DeleteField, nil
	case port.TransformArrayUnion:
		return port.ArrayUnion(vals...), nil
	case port.TransformArrayRemove:
		return port.ArrayRemove(vals...), nil
	}
	return nil, fmt.Errorf("unknown transform %q", s)
}
