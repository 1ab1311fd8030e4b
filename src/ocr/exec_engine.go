package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ExecEngine shells out to an external recognizer command. The command
// receives a PNG path as its last argument and prints one line of text
// per recognized row; rows prefixed "N→" are negative affixes (the
// same convention the vocabulary files use).
type ExecEngine struct {
	Command string
	Args    []string

	mu     sync.Mutex
	tmpDir string
	seq    int
	closed bool
}

func NewExecEngine(command string, args ...string) *ExecEngine {
	return &ExecEngine{Command: command, Args: args}
}

func (e *ExecEngine) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Command == "" {
		return fmt.Errorf("ocr command not configured")
	}
	dir, err := os.MkdirTemp("", "relic-keeper-ocr-")
	if err != nil {
		return fmt.Errorf("create ocr temp dir: %w", err)
	}
	e.tmpDir = dir
	e.closed = false
	return nil
}

func (e *ExecEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.tmpDir != "" {
		err := os.RemoveAll(e.tmpDir)
		e.tmpDir = ""
		return err
	}
	return nil
}

func (e *ExecEngine) RecognizeLines(img *image.RGBA) ([]Line, error) {
	e.mu.Lock()
	if e.closed || e.tmpDir == "" {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.seq++
	path := filepath.Join(e.tmpDir, fmt.Sprintf("region_%d.png", e.seq))
	e.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("write ocr region: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return nil, fmt.Errorf("encode ocr region: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	defer os.Remove(path)

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(e.Command, append(e.Args, path)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ocr command failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	return ParseLines(stdout.String()), nil
}

// ParseLines converts recognizer output into polarity-tagged lines.
func ParseLines(raw string) []Line {
	var lines []Line
	for _, ln := range strings.Split(raw, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(ln, "N→"); ok {
			lines = append(lines, Line{Text: rest, Polarity: Negative})
			continue
		}
		lines = append(lines, Line{Text: ln, Polarity: Positive})
	}
	return lines
}
