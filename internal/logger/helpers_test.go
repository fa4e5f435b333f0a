package logger

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func newTempLogFile(t *testing.T) (*os.File, error) {
	t.Helper()
	return os.Create(filepath.Join(t.TempDir(), "test.log"))
}

func readAll(t *testing.T, f *os.File) string {
	t.Helper()
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
