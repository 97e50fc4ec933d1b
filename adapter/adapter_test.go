package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type bootRequest struct {
	Reason string `json:"reason"`
}

type bootResponse struct {
	Status string `json:"status"`
}

func TestAdapter(t *testing.T) {
	a := New("2.0.1").Register("BootNotification", bootRequest{}, bootResponse{})
	assert.Equal(t, "2.0.1", a.Version())

	request, ok := a.NewRequest("BootNotification")
	assert.True(t, ok)
	assert.IsType(t, &bootRequest{}, request)

	response, ok := a.NewResponse("BootNotification")
	assert.True(t, ok)
	assert.IsType(t, &bootResponse{}, response)

	_, ok = a.NewRequest("Reset")
	assert.False(t, ok)
	_, ok = a.NewResponse("Reset")
	assert.False(t, ok)
}

func TestActionOf(t *testing.T) {
	a := New("2.0.1").Register("BootNotification", bootRequest{}, bootResponse{})

	action, ok := a.ActionOf(&bootRequest{})
	assert.True(t, ok)
	assert.Equal(t, "BootNotification", action)

	// values and pointers resolve to the same action
	action, ok = a.ActionOf(bootRequest{})
	assert.True(t, ok)
	assert.Equal(t, "BootNotification", action)

	_, ok = a.ActionOf(struct{}{})
	assert.False(t, ok)
}

func TestNewRequestReturnsFreshInstances(t *testing.T) {
	a := New("2.0.1").Register("BootNotification", bootRequest{}, bootResponse{})
	first, _ := a.NewRequest("BootNotification")
	second, _ := a.NewRequest("BootNotification")
	assert.NotSame(t, first, second)
}
