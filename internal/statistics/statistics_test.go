package statistics

import (
	"strings"
	"sync"
	"testing"
)

func TestRecordSuccessAndFailure(t *testing.T) {
	s := NewStatistics()
	s.AddFilesFound(3)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncrementFilesProcessed()
			s.RecordSuccess("png", 1000, 400)
		}()
	}
	wg.Wait()
	s.IncrementFilesProcessed()
	s.RecordFailure("bad.png", "compress", "decode failed")
	s.Finalize()

	snap := s.Snapshot()
	if snap.FilesFound != 3 || snap.FilesProcessed != 3 {
		t.Errorf("found/processed = %d/%d", snap.FilesFound, snap.FilesProcessed)
	}
	if snap.FilesCompressed != 2 || snap.FilesWithErrors != 1 {
		t.Errorf("compressed/errors = %d/%d", snap.FilesCompressed, snap.FilesWithErrors)
	}
	if snap.BytesBefore != 2000 || snap.BytesAfter != 800 || snap.BytesSaved != 1200 {
		t.Errorf("bytes = %d/%d/%d", snap.BytesBefore, snap.BytesAfter, snap.BytesSaved)
	}
	if snap.PercentSaved != 60 {
		t.Errorf("percent saved = %.2f", snap.PercentSaved)
	}
	if snap.Formats["png"] != 2 {
		t.Errorf("png count = %d", snap.Formats["png"])
	}
	if !strings.Contains(s.GetErrorSummary(), "bad.png") {
		t.Error("error summary should mention the failed file")
	}
	if !strings.Contains(s.GetSummary(), "Compressed: 2") {
		t.Errorf("summary missing counts:\n%s", s.GetSummary())
	}
}

func TestBytesSavedFloorsAtZero(t *testing.T) {
	s := NewStatistics()
	s.RecordSuccess("png", 100, 150)
	if s.BytesSaved() != 0 || s.PercentSaved() != 0 {
		t.Errorf("saved = %d (%.2f%%)", s.BytesSaved(), s.PercentSaved())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		999:     "999 B",
		1000:    "1.0 kB",
		1500000: "1.5 MB",
		-5:      "0 B",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
