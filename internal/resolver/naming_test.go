package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		hint string
		want string
	}{
		{"High Mp4", "mp4"},
		{"HIGH MP4 (320x240)", "mp4"},
		{"[AVI]", "avi"},
		{"(webm)", "webm"},
		{" [3GP] ", "3gp"},
		{"mkv", "mkv"},
		{"[]", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.hint))
		})
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Foo S01E01.mp4", FileName("Foo S01E01", "High Mp4"))
	assert.Equal(t, "Foo S01E02.avi", FileName("Foo S01E02", "[AVI]"))
	assert.Equal(t, "Episode 01 Pilot.webm", FileName("Episode 01: Pilot?", "[webm]"))
	assert.Equal(t, "a b.mp4", FileName("a/b", "high mp4"))
	assert.Equal(t, "No Format", FileName("No Format", ""))
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "Ep 1 (2).mp4", withSuffix("Ep 1.mp4", 2))
	assert.Equal(t, "Ep 1 (3)", withSuffix("Ep 1", 3))
}
