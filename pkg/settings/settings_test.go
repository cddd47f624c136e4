package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCliParams(t *testing.T) {
	got := NewCliParams()
	assert.Equal(t, &Run{Input: Input{Path: "-"}, Format: "cli"}, got)
	assert.True(t, got.Input.FromStdin())
}

func TestInputFromStdin(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"", true},
		{"-", true},
		{"data.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Input{Path: tt.path}.FromStdin())
		})
	}
}
