package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryBasics(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.Has("a"))

	s := &Session{ID: "a"}
	r.Set("a", s)

	got, ok := r.Get("a")
	assert.True(t, ok)
	assert.Same(t, s, got)
	assert.True(t, r.Has("a"))
	assert.Equal(t, 1, r.Len())

	r.Delete("a")
	assert.False(t, r.Has("a"))

	// Deleting an absent id is a no-op.
	r.Delete("a")
}

func TestRegistryIDsSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		r.Set(id, &Session{ID: id})
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.IDs())
}

func TestRegistryConcurrentReaders(t *testing.T) {
	r := NewRegistry()
	r.Set("a", &Session{ID: "a"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Get("a")
			r.Has("a")
			r.Set(fmt.Sprintf("w-%d", i), &Session{})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 51, r.Len())
}

func TestSessionQRLifecycle(t *testing.T) {
	s := &Session{ID: "a"}
	assert.Empty(t, s.QR())

	s.SetQR("2@code")
	assert.Equal(t, "2@code", s.QR())

	s.ClearQR()
	assert.Empty(t, s.QR())
}
