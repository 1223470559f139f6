package internal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shortWriter struct{ max int }

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.max {
		return w.max, nil
	}
	return len(p), nil
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteRecord(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test-writerecord-*.bin")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())
	defer tmpfile.Close()

	content := []byte("forty bytes of record content, give/take")
	assert.NoError(t, WriteRecord(tmpfile, content))

	data, err := os.ReadFile(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestWriteRecord_ShortWrite(t *testing.T) {
	err := WriteRecord(&shortWriter{max: 3}, []byte("0123456789"))
	assert.ErrorIs(t, err, ErrShortWrite)
}

func TestWriteRecord_Error(t *testing.T) {
	err := WriteRecord(failWriter{}, []byte("x"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.cidx")
	f, err := CreateFile(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
