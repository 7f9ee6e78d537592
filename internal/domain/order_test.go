package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input string
		want  Status
		ok    bool
	}{
		{"new", StatusNew, true},
		{"confirmed", StatusConfirmed, true},
		{"prepared", StatusPrepared, true},
		{"ready", StatusReady, true},
		{"completed", StatusCompleted, true},
		{"cancelled", StatusCancelled, true},
		{"", Status(""), false},
		{"NEW", Status("NEW"), false},
		{"shipped", Status("shipped"), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseStatus(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())

	for _, s := range []Status{StatusNew, StatusConfirmed, StatusPrepared, StatusReady} {
		assert.False(t, s.Terminal(), "status %s should not be terminal", s)
	}
}
