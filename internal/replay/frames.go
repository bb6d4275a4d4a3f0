package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/banshee-data/photobooth/internal/overlay"
)

// Frame is one line of a detection log.
type Frame struct {
	Index      int                   `json:"frame"`
	Geometry   overlay.FrameGeometry `json:"geometry"`
	Detections []overlay.Detection   `json:"detections"`
	// Truth is the true anchor in display space, known only for synthetic logs.
	Truth *overlay.Point `json:"truth,omitempty"`
}

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 4 << 20

// ReadFrames parses a JSONL detection log. Blank lines and lines starting
// with '#' are skipped.
func ReadFrames(r io.Reader) ([]Frame, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)

	var frames []Frame
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var f Frame
		if err := json.Unmarshal([]byte(text), &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		frames = append(frames, f)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	return frames, nil
}

// WriteFrames writes frames as JSONL.
func WriteFrames(w io.Writer, frames []Frame) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range frames {
		if err := enc.Encode(&frames[i]); err != nil {
			return fmt.Errorf("frame %d: %w", frames[i].Index, err)
		}
	}
	return bw.Flush()
}

// LoadFile reads a detection log from path.
func LoadFile(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frames, err := ReadFrames(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}

// SaveFile writes a detection log to path.
func SaveFile(path string, frames []Frame) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteFrames(f, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
