// Package remote identifies host-owned objects.
package remote

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/silkedit/silkedit-helper/internal/rpc"
)

// Kind distinguishes the two id variants.
type Kind int

const (
	KindInvalid Kind = iota
	KindIndexed
	KindSingleton
)

func (k Kind) String() string {
	switch k {
	case KindIndexed:
		return "indexed"
	case KindSingleton:
		return "singleton"
	default:
		return "invalid"
	}
}

// ID is either Indexed(n), a per-instance object, or Singleton(uuid), a service.
// The zero value is invalid.
type ID struct {
	kind  Kind
	index int
	uuid  uuid.UUID
}

// Indexed returns the id of a per-instance object. n must be non-negative.
func Indexed(n int) ID {
	if n < 0 {
		return ID{}
	}
	return ID{kind: KindIndexed, index: n}
}

// Singleton returns the id of a service object.
func Singleton(u uuid.UUID) ID {
	return ID{kind: KindSingleton, uuid: u}
}

// MustSingleton parses s into a Singleton id and panics on malformed input.
func MustSingleton(s string) ID {
	return Singleton(uuid.MustParse(s))
}

func (id ID) Kind() Kind      { return id.kind }
func (id ID) Valid() bool     { return id.kind != KindInvalid }
func (id ID) Index() int      { return id.index }
func (id ID) UUID() uuid.UUID { return id.uuid }

// Wire returns the form the host uses: an integer for Indexed ids and the bytes
// of the braced uuid string for Singleton ids.
func (id ID) Wire() any {
	switch id.kind {
	case KindIndexed:
		return id.index
	case KindSingleton:
		return []byte(braced(id.uuid))
	default:
		return nil
	}
}

// String renders the id for logs and cache keys.
func (id ID) String() string {
	switch id.kind {
	case KindIndexed:
		return fmt.Sprintf("#%d", id.index)
	case KindSingleton:
		return braced(id.uuid)
	default:
		return "<invalid>"
	}
}

func braced(u uuid.UUID) string {
	return "{" + u.String() + "}"
}

// Parse interprets a raw value received from the host as an id of the expected kind.
// nil, values of the wrong shape and negative integers yield an invalid id.
func Parse(raw any, want Kind) ID {
	switch want {
	case KindIndexed:
		n, ok := rpc.AsInt(raw)
		if !ok {
			return ID{}
		}
		return Indexed(n)
	case KindSingleton:
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		default:
			return ID{}
		}
		u, err := uuid.Parse(strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}"))
		if err != nil {
			return ID{}
		}
		return Singleton(u)
	default:
		return ID{}
	}
}
