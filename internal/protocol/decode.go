package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// Errors surfaced by inbound parsing and validation. Handlers map these
// to error events on the offending socket; the connection stays open.
var (
	ErrNotObject      = errors.New("frame is not a JSON object")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message exceeds limit")
	ErrBadField       = errors.New("field has wrong type")
)

// Decode parses one inbound frame. Anything that is not a JSON object
// at the top level is rejected.
func Decode(data []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if fields == nil {
		return nil, ErrNotObject
	}
	return fields, nil
}

// DispatchKey extracts the route's dispatch field from a decoded frame.
// A missing or empty value falls back to def; a present value of the
// wrong type reports ErrBadField.
func DispatchKey(fields map[string]any, field, def string) (string, error) {
	raw, ok := fields[field]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s: %w", field, ErrBadField)
	}
	if s == "" {
		return def, nil
	}
	return s, nil
}

// StringField returns a string payload field, def when absent.
func StringField(fields map[string]any, name, def string) (string, error) {
	raw, ok := fields[name]
	if !ok || raw == nil {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrBadField)
	}
	return s, nil
}

// NumberField returns a numeric payload field, def when absent.
func NumberField(fields map[string]any, name string, def float64) (float64, error) {
	raw, ok := fields[name]
	if !ok || raw == nil {
		return def, nil
	}
	n, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrBadField)
	}
	return n, nil
}

// ValidateMessage enforces the chat payload bounds: non-empty and at
// most maxRunes characters. Length is counted in runes, not bytes, so
// multi-byte text is not penalized.
func ValidateMessage(msg string, maxRunes int) error {
	if msg == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(msg) > maxRunes {
		return fmt.Errorf("%w: %d > %d runes", ErrMessageTooLong, utf8.RuneCountInString(msg), maxRunes)
	}
	return nil
}
