package remote

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const apiUUID = "2bb7d707-42e3-4be2-a7fc-3c65f997de40"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Kind
		ok   bool
		str  string
	}{
		{name: "uint64 index", raw: uint64(3), want: KindIndexed, ok: true, str: "#3"},
		{name: "int64 index", raw: int64(0), want: KindIndexed, ok: true, str: "#0"},
		{name: "negative index", raw: int64(-1), want: KindIndexed},
		{name: "nil means no object", raw: nil, want: KindIndexed},
		{name: "string for indexed", raw: "3", want: KindIndexed},
		{name: "braced bytes", raw: []byte("{" + apiUUID + "}"), want: KindSingleton, ok: true, str: "{" + apiUUID + "}"},
		{name: "bare string", raw: apiUUID, want: KindSingleton, ok: true, str: "{" + apiUUID + "}"},
		{name: "garbage singleton", raw: []byte("{nope}"), want: KindSingleton},
		{name: "int for singleton", raw: uint64(1), want: KindSingleton},
		{name: "invalid kind", raw: uint64(1), want: KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Parse(tt.raw, tt.want)
			assert.Equal(t, tt.ok, id.Valid())
			if tt.ok {
				assert.Equal(t, tt.want, id.Kind())
				assert.Equal(t, tt.str, id.String())
			}
		})
	}
}

func TestWire(t *testing.T) {
	assert.Equal(t, 5, Indexed(5).Wire())
	assert.Equal(t, []byte("{"+apiUUID+"}"), MustSingleton(apiUUID).Wire())
	assert.Nil(t, ID{}.Wire())
	assert.False(t, Indexed(-3).Valid())
}

func TestIDsAreComparable(t *testing.T) {
	u := uuid.MustParse(apiUUID)
	assert.Equal(t, Singleton(u), Parse([]byte("{"+apiUUID+"}"), KindSingleton))
	assert.Equal(t, Indexed(2), Parse(uint64(2), KindIndexed))
	assert.NotEqual(t, Indexed(2), Indexed(3))

	cache := map[ID]string{Indexed(1): "window"}
	assert.Equal(t, "window", cache[Parse(int64(1), KindIndexed)])
}
