package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/photobooth/internal/replay"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestParseFlags(t *testing.T) {
	o, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, replay.DefaultSynthOptions(), o.synth)

	o, err = parseFlags([]string{"-frames", "50", "-jitter", "0", "-false-positive-at", "-1", "-json"})
	require.NoError(t, err)
	assert.Equal(t, 50, o.synth.Frames)
	assert.Zero(t, o.synth.JitterPx)
	assert.Equal(t, -1, o.synth.FalsePositiveAt)
	assert.True(t, o.jsonOutput)

	_, err = parseFlags([]string{"-frames", "0"})
	assert.Error(t, err)

	_, err = parseFlags([]string{"-plot", "/etc/overlay.png"})
	assert.Error(t, err)
}

func TestRunSyntheticJSON(t *testing.T) {
	dir := t.TempDir()
	o, err := parseFlags([]string{
		"-frames", "120",
		"-json",
		"-out", filepath.Join(dir, "frames.jsonl"),
		"-plot", filepath.Join(dir, "plot.png"),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, run(o, &buf))

	var s replay.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &s))
	assert.Equal(t, 120, s.Frames)
	assert.GreaterOrEqual(t, s.TracksCreated, 1)
	assert.FileExists(t, filepath.Join(dir, "plot.png"))

	// The saved log replays to the same summary.
	o2, err := parseFlags([]string{"-in", filepath.Join(dir, "frames.jsonl"), "-json"})
	require.NoError(t, err)
	var buf2 bytes.Buffer
	require.NoError(t, run(o2, &buf2))
	var s2 replay.Summary
	require.NoError(t, json.Unmarshal(buf2.Bytes(), &s2))
	assert.Equal(t, s.Frames, s2.Frames)
	assert.Equal(t, s.TracksCreated, s2.TracksCreated)
	assert.InDelta(t, s.SmoothStepStd, s2.SmoothStepStd, 1e-9)
}

func TestRunText(t *testing.T) {
	o, err := parseFlags([]string{"-frames", "30"})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, run(o, &buf))
	assert.Contains(t, buf.String(), "jitter reduction:")
}

func TestRunMissingInput(t *testing.T) {
	o, err := parseFlags([]string{"-in", filepath.Join(t.TempDir(), "nope.jsonl")})
	require.NoError(t, err)
	assert.Error(t, run(o, io.Discard))
}
