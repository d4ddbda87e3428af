package rpc

import (
	"errors"
	"fmt"
	"math"
)

// Message type tags. The layout follows msgpack-rpc.
const (
	typeRequest  = 0
	typeResponse = 1
	typeNotify   = 2
)

var (
	// ErrAlreadyReplied is returned when a request is answered a second time.
	ErrAlreadyReplied = errors.New("rpc: request already replied")
	// ErrClosed is returned when writing to a closed connection.
	ErrClosed = errors.New("rpc: connection closed")
	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("rpc: frame too large")
)

// ResponseError carries the error value the peer put in a response.
type ResponseError struct {
	Value any
}

func (e *ResponseError) Error() string {
	if s, ok := e.Value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", e.Value)
}

// Args are the positional parameters of an inbound message.
// Accessors return the zero value when the index is out of range or the type does not match.
type Args []any

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// Value returns the raw argument at i.
func (a Args) Value(i int) any {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// String returns argument i as a string. Byte strings are converted.
func (a Args) String(i int) string {
	switch v := a.Value(i).(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Int returns argument i as an int.
func (a Args) Int(i int) int {
	n, _ := AsInt(a.Value(i))
	return n
}

// Bool returns argument i as a bool.
func (a Args) Bool(i int) bool {
	b, _ := a.Value(i).(bool)
	return b
}

// Map returns argument i as a string-keyed map, or nil.
func (a Args) Map(i int) map[string]any {
	m, _ := a.Value(i).(map[string]any)
	return m
}

// AsInt converts the numeric types produced by the codec to int.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float32:
		return int(n), float32(int(n)) == n
	case float64:
		return int(n), float64(int(n)) == n
	default:
		return 0, false
	}
}
