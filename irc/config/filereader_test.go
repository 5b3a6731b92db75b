package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeOver(path, content string) error {
	return os.WriteFile(path, []byte(content), 0644)
}

func TestFileReaderLines(t *testing.T) {
	lines := []string{"Welcome to the network.", "", "Be excellent to each other."}
	path := writeTemp(t, "motd.txt", strings.Join(lines, "\n")+"\n")

	fr, err := NewFileReader(path)
	assert.NoError(t, err)
	assert.True(t, fr.Exists())
	assert.Equal(t, len(lines), fr.FileSize())

	for i, want := range lines {
		assert.Equal(t, want, fr.GetLine(i))
	}
	assert.Equal(t, lines, fr.Lines())
}

func TestFileReaderCRLF(t *testing.T) {
	path := writeTemp(t, "motd.txt", "one\r\ntwo\r\n")

	fr, err := NewFileReader(path)
	assert.NoError(t, err)
	assert.Equal(t, 2, fr.FileSize())
	assert.Equal(t, "two", fr.GetLine(1))
}

func TestFileReaderTrailingBlankLines(t *testing.T) {
	path := writeTemp(t, "motd.txt", "a\n\n")

	fr, err := NewFileReader(path)
	assert.NoError(t, err)
	assert.Equal(t, 2, fr.FileSize())
	assert.Equal(t, "a", fr.GetLine(0))
	assert.Equal(t, "", fr.GetLine(1))

	assert.NoError(t, writeOver(path, "a\n\n\n"))
	assert.NoError(t, fr.Reload())
	assert.Equal(t, 3, fr.FileSize())

	assert.NoError(t, writeOver(path, "\n"))
	assert.NoError(t, fr.Reload())
	assert.Equal(t, 1, fr.FileSize())
	assert.Equal(t, "", fr.GetLine(0))
}

func TestFileReaderOutOfRange(t *testing.T) {
	path := writeTemp(t, "motd.txt", "only\n")

	fr, err := NewFileReader(path)
	assert.NoError(t, err)
	assert.Equal(t, "", fr.GetLine(-1))
	assert.Equal(t, "", fr.GetLine(1))
}

func TestFileReaderEmptyPath(t *testing.T) {
	fr, err := NewFileReader("")
	assert.NoError(t, err)
	assert.False(t, fr.Exists())
	assert.Equal(t, 0, fr.FileSize())
}

func TestFileReaderMissing(t *testing.T) {
	_, err := NewFileReader("/nonexistent/motd.txt")
	assert.Error(t, err)
}

func TestFileReaderReload(t *testing.T) {
	path := writeTemp(t, "motd.txt", "old\n")

	fr, err := NewFileReader(path)
	assert.NoError(t, err)
	assert.Equal(t, "old", fr.GetLine(0))

	assert.NoError(t, writeOver(path, "new one\nnew two\n"))
	assert.NoError(t, fr.Reload())
	assert.Equal(t, 2, fr.FileSize())
	assert.Equal(t, "new one", fr.GetLine(0))
}
