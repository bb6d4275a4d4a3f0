package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinDir(t *testing.T) {
	tmp := t.TempDir()
	safe := filepath.Join(tmp, "safe")
	outside := filepath.Join(tmp, "outside")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(safe, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"direct child", filepath.Join(safe, "plot.png"), false},
		{"missing nested dirs", filepath.Join(safe, "a", "b", "frames.jsonl"), false},
		{"dot dot escape", filepath.Join(safe, "..", "plot.png"), true},
		{"the dir itself", safe, false},
		{"symlinked dir", filepath.Join(safe, "link", "plot.png"), true},
		{"absolute elsewhere", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDir(tt.path, safe)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithinDirMissingRoot(t *testing.T) {
	err := WithinDir("x", filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWithinAny(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	assert.NoError(t, WithinAny(filepath.Join(b, "f"), []string{a, b}))
	assert.Error(t, WithinAny("/etc/passwd", []string{a, b}))
	assert.Error(t, WithinAny(filepath.Join(a, "f"), nil))
}

func TestOutputPath(t *testing.T) {
	assert.NoError(t, OutputPath(filepath.Join(t.TempDir(), "plot.png")))
	assert.NoError(t, OutputPath("plot.png"))
	assert.Error(t, OutputPath("/etc/photobooth.png"))
}
