// Package signing produces and verifies HMAC-SHA256 signatures over
// canonical JSON. Canonicalization sorts object keys recursively and strips
// all insignificant whitespace, so two structurally equal payloads always
// serialize to the same bytes regardless of field order.
package signing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize returns the canonical JSON encoding of v: object keys sorted
// lexicographically at every nesting level, compact separators, no HTML
// escaping. Keys listed in exclude are removed from the top level before
// encoding.
func Canonicalize(v any, exclude ...string) ([]byte, error) {
	// Round-trip through encoding/json so struct tags are honored, then
	// re-encode the generic form with deterministic ordering.
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal failed: %w", err)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: decode failed: %w", err)
	}

	if len(exclude) > 0 {
		if obj, ok := generic.(map[string]any); ok {
			for _, key := range exclude {
				delete(obj, key)
			}
		}
	}

	return encodeCanonical(generic)
}

func encodeCanonical(v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		if t {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		return []byte(t.String()), nil
	case string:
		return encodeString(t)
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := encodeCanonical(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := encodeString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := encodeCanonical(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("canonicalize: unsupported type %T", v)
	}
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	// json.Encoder appends a newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
