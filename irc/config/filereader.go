package config

import (
	"fmt"
	"os"
	"strings"
)

// FileReader holds the lines of an auxiliary text file, such as an
// MOTD or rules file. The file is read once; Reload picks up changes.
type FileReader struct {
	path  string
	lines []string
}

// NewFileReader reads the file at path. An empty path yields an empty
// reader with no error, so optional files stay optional.
func NewFileReader(path string) (*FileReader, error) {
	fr := &FileReader{path: path}
	if path == "" {
		return fr, nil
	}
	if err := fr.Reload(); err != nil {
		return nil, err
	}
	return fr, nil
}

// Reload re-reads the file from disk.
func (fr *FileReader) Reload() error {
	data, err := os.ReadFile(fr.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", fr.path, err)
	}

	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if text == "" {
		fr.lines = nil
		return nil
	}
	// Only the final terminator is stripped; a file ending in a blank
	// line keeps that line.
	fr.lines = strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	return nil
}

// Exists reports whether the reader holds any content.
func (fr *FileReader) Exists() bool {
	return len(fr.lines) > 0
}

// GetLine returns the line at the given zero-based index, or the empty
// string when out of range.
func (fr *FileReader) GetLine(n int) string {
	if n < 0 || n >= len(fr.lines) {
		return ""
	}
	return fr.lines[n]
}

// FileSize returns the number of lines held.
func (fr *FileReader) FileSize() int {
	return len(fr.lines)
}

// Lines returns a copy of all lines.
func (fr *FileReader) Lines() []string {
	out := make([]string, len(fr.lines))
	copy(out, fr.lines)
	return out
}
