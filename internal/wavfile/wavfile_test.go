package wavfile

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	samples := []int16{0, 0, 1000, -1000, 32767, -32768, 12, -12}
	if err := Write(f, 32000, samples); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err = os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rate, channels, got, err := Read(f)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rate != 32000 || channels != 2 {
		t.Fatalf("format = %d Hz %d channels", rate, channels)
	}
	if !slices.Equal(got, samples) {
		t.Fatalf("samples = %v, want %v", got, samples)
	}
}

func TestReadRejectsOtherFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not a RIFF file at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if _, _, _, err := Read(f); !errors.Is(err, ErrNotWAV) {
		t.Fatalf("Read error = %v, want ErrNotWAV", err)
	}
}
