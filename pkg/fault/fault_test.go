package fault

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Run("classified error", func(t *testing.T) {
		err := Config(nil, "unknown module %q", "x.y")
		assert.Equal(t, KindConfig, KindOf(err))
		assert.Equal(t, `unknown module "x.y"`, err.Error())
	})

	t.Run("wrapped classified error", func(t *testing.T) {
		err := fmt.Errorf("step load_data: %w", Data(nil, "missing columns"))
		assert.Equal(t, KindData, KindOf(err))
		assert.True(t, Is(err, KindData))
		assert.False(t, Is(err, KindConfig))
	})

	t.Run("plain error", func(t *testing.T) {
		assert.Equal(t, KindUnexpected, KindOf(errors.New("boom")))
		assert.False(t, Is(nil, KindUnexpected))
	})
}

func TestError_Verbose(t *testing.T) {
	err := Data(map[string]any{"missing": []string{"Stat Code"}, "file": "a.csv"}, "missing required columns")
	assert.Equal(t, "missing required columns (file=a.csv, missing=[Stat Code])", err.Verbose())

	bare := Output(nil, "deck failed")
	assert.Equal(t, "deck failed", bare.Verbose())
}

func TestWrap_Unwrap(t *testing.T) {
	cause := fs.ErrNotExist
	err := Wrap(KindData, cause, "open extract")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, "open extract: file does not exist", err.Error())
}

func TestDetailOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", Config(map[string]any{"available": []string{"a", "b"}}, "nope"))
	assert.Equal(t, []string{"a", "b"}, DetailOf(err)["available"])
	assert.Empty(t, DetailOf(errors.New("plain")))
}

func TestGuidance(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		title string
	}{
		{"not found beats data kind", Wrap(KindData, fs.ErrNotExist, "open"), "File Not Found"},
		{"permission", fmt.Errorf("write: %w", fs.ErrPermission), "File Locked"},
		{"retrieve", Retrieve(nil, "share offline"), "Retrieve Error"},
		{"data", Data(nil, "bad columns"), "Data Problem"},
		{"config", Config(nil, "no client"), "Setup Issue"},
		{"output", Output(nil, "xlsx"), "Output Error"},
		{"fallback", errors.New("boom"), "Unexpected Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, msg := Guidance(tt.err)
			assert.Equal(t, tt.title, title)
			assert.NotEmpty(t, msg)
		})
	}
}
