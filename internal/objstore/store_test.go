package objstore

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silkedit/silkedit-helper/internal/log"
	"github.com/silkedit/silkedit-helper/internal/proxy"
	"github.com/silkedit/silkedit-helper/internal/remote"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

type nopCaller struct{}

func (nopCaller) Notify(string, remote.ID, ...any) {}
func (nopCaller) Invoke(context.Context, string, remote.ID, ...any) (any, error) {
	return nil, nil
}

type window struct{ h *proxy.Handle }

func (w *window) Handle() *proxy.Handle { return w.h }

var (
	windowKind = Kind{
		Type:   proxy.NewType("Window", "close"),
		IDKind: remote.KindIndexed,
		Wrap:   func(h *proxy.Handle) Object { return &window{h: h} },
	}
	tabKind = Kind{Type: proxy.NewType("TabView"), IDKind: remote.KindIndexed}
	apiKind = Kind{Type: proxy.NewType("API"), IDKind: remote.KindSingleton}
)

func TestGetOrCreate(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		kind    Kind
		wantOK  bool
		checkFn func(t *testing.T, s *Store, obj Object)
	}{
		{
			name:   "wraps indexed id",
			raw:    uint64(1),
			kind:   windowKind,
			wantOK: true,
			checkFn: func(t *testing.T, s *Store, obj Object) {
				w, ok := obj.(*window)
				require.True(t, ok)
				assert.Equal(t, remote.Indexed(1), w.Handle().ID())
				assert.Equal(t, 1, s.Len())
			},
		},
		{
			name:   "bare handle without wrap",
			raw:    int64(2),
			kind:   tabKind,
			wantOK: true,
			checkFn: func(t *testing.T, _ *Store, obj Object) {
				assert.Equal(t, "TabView", obj.Handle().Type().Name())
			},
		},
		{
			name: "nil means no object",
			raw:  nil,
			kind: windowKind,
		},
		{
			name: "wrong variant",
			raw:  "not-an-index",
			kind: windowKind,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nopCaller{})
			obj, ok := s.GetOrCreate(tt.raw, tt.kind)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Nil(t, obj)
				assert.Equal(t, 0, s.Len())
				return
			}
			tt.checkFn(t, s, obj)
		})
	}
}

func TestIdentity(t *testing.T) {
	s := New(nopCaller{})

	a, _ := s.GetOrCreate(uint64(1), windowKind)
	b, _ := s.GetOrCreate(int64(1), windowKind)
	c, _ := s.GetOrCreate(uint64(2), windowKind)

	assert.Same(t, a.(*window), b.(*window))
	assert.NotSame(t, a.(*window), c.(*window))
	assert.Equal(t, 2, s.Len())
}

func TestIdentityUnderConcurrency(t *testing.T) {
	s := New(nopCaller{})
	results := make([]Object, 16)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.GetOrCreate(uint64(5), windowKind)
		}(i)
	}
	wg.Wait()

	for _, obj := range results[1:] {
		assert.Same(t, results[0].(*window), obj.(*window))
	}
}

func TestTypeMismatchReplaces(t *testing.T) {
	s := New(nopCaller{})
	w, _ := s.GetOrCreate(uint64(3), windowKind)
	tab, _ := s.GetOrCreate(uint64(3), tabKind)

	assert.Equal(t, "TabView", tab.Handle().Type().Name())
	assert.NotEqual(t, w.Handle(), tab.Handle())
	assert.Equal(t, 1, s.Len())
}

func TestRelease(t *testing.T) {
	s := New(nopCaller{})
	dialog, _ := s.GetOrCreate(uint64(9), tabKind)
	api, _ := s.GetOrCreate([]byte("{2bb7d707-42e3-4be2-a7fc-3c65f997de40}"), apiKind)
	require.Equal(t, 2, s.Len())

	assert.True(t, s.Release(dialog.Handle().ID()))
	assert.False(t, s.Release(dialog.Handle().ID()))
	assert.False(t, s.Release(api.Handle().ID()))
	assert.Equal(t, 1, s.Len())

	again, _ := s.GetOrCreate(uint64(9), tabKind)
	assert.NotSame(t, dialog.Handle(), again.Handle())
}
