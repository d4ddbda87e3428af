package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// MaxFrameSize bounds a single encoded message.
const MaxFrameSize = 16 << 20

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("rpc: failed to create CBOR enc mode: %v", err))
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 20,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("rpc: failed to create CBOR dec mode: %v", err))
	}
	decMode = dm
}

// message is a decoded frame.
type message struct {
	kind   int
	msgid  uint32
	method string
	params Args
	err    any
	result any
}

// writeFrame encodes v and writes it with a 4-byte big-endian length prefix.
func writeFrame(w io.Writer, v any) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed payload.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return payload, nil
}

func encodeRequest(msgid uint32, method string, params []any) []any {
	return []any{typeRequest, msgid, method, nonNil(params)}
}

func encodeResponse(msgid uint32, errVal, result any) []any {
	return []any{typeResponse, msgid, errVal, result}
}

func encodeNotify(method string, params []any) []any {
	return []any{typeNotify, method, nonNil(params)}
}

func nonNil(params []any) []any {
	if params == nil {
		return []any{}
	}
	return params
}

// decodeMessage parses a frame payload into a message. A request whose
// msgid decodes but whose body does not is returned alongside the error.
func decodeMessage(payload []byte) (*message, error) {
	var raw []any
	if err := decMode.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode frame: empty message")
	}
	kind, ok := AsInt(raw[0])
	if !ok {
		return nil, fmt.Errorf("decode frame: invalid type tag %v", raw[0])
	}

	msg := &message{kind: kind}
	switch kind {
	case typeRequest:
		if len(raw) < 2 {
			return nil, fmt.Errorf("decode request: want 4 elements, got %d", len(raw))
		}
		id, err := decodeMsgID(raw[1])
		if err != nil {
			return nil, err
		}
		// From here on the msgid is known, so the caller can still answer.
		msg.msgid = id
		if len(raw) != 4 {
			return msg, fmt.Errorf("decode request: want 4 elements, got %d", len(raw))
		}
		msg.method, msg.params, err = decodeCall(raw[2], raw[3])
		if err != nil {
			return msg, err
		}
	case typeResponse:
		if len(raw) != 4 {
			return nil, fmt.Errorf("decode response: want 4 elements, got %d", len(raw))
		}
		id, err := decodeMsgID(raw[1])
		if err != nil {
			return nil, err
		}
		msg.msgid = id
		msg.err = raw[2]
		msg.result = raw[3]
	case typeNotify:
		if len(raw) != 3 {
			return nil, fmt.Errorf("decode notify: want 3 elements, got %d", len(raw))
		}
		var err error
		msg.method, msg.params, err = decodeCall(raw[1], raw[2])
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("decode frame: unknown type tag %d", kind)
	}
	return msg, nil
}

func decodeMsgID(v any) (uint32, error) {
	n, ok := AsInt(v)
	if !ok || n < 0 || n > int(^uint32(0)) {
		return 0, fmt.Errorf("decode frame: invalid msgid %v", v)
	}
	return uint32(n), nil
}

func decodeCall(method, params any) (string, Args, error) {
	var name string
	switch m := method.(type) {
	case string:
		name = m
	case []byte:
		name = string(m)
	default:
		return "", nil, fmt.Errorf("decode frame: invalid method %v", method)
	}
	switch p := params.(type) {
	case nil:
		return name, Args{}, nil
	case []any:
		return name, Args(p), nil
	default:
		return "", nil, fmt.Errorf("decode frame: params for %s must be an array", name)
	}
}
