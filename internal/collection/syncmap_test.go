package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncMap(t *testing.T) {
	m := NewSyncMap[string, int]()
	assert.Equal(t, 0, m.Size())

	m.Put("a", 1)
	m.Put("b", 2)
	assert.Equal(t, 2, m.Size())

	value, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)

	_, ok = m.Get("missing")
	assert.False(t, ok)

	m.Delete("a")
	_, ok = m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Size())
}

func TestSyncMapGetAndDelete(t *testing.T) {
	m := NewSyncMap[string, int]()
	m.Put("a", 1)

	value, ok := m.GetAndDelete("a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)
	assert.Equal(t, 0, m.Size())

	// removal happens at most once
	_, ok = m.GetAndDelete("a")
	assert.False(t, ok)
}
