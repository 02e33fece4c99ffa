package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics contains running counters for a batch or for the web service.
type Statistics struct {
	TotalFilesFound     int64
	TotalFilesProcessed int64
	FilesCompressed     int64
	FilesWithErrors     int64

	// Only successful files contribute to the byte totals.
	BytesBefore int64
	BytesAfter  int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	Errors []StatError

	mutex sync.RWMutex

	FormatStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string    `json:"file_path"`
	Operation string    `json:"operation"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is a point-in-time copy of the counters, safe to serialize.
type Snapshot struct {
	FilesFound      int64            `json:"files_found"`
	FilesProcessed  int64            `json:"files_processed"`
	FilesCompressed int64            `json:"files_compressed"`
	FilesWithErrors int64            `json:"files_with_errors"`
	BytesBefore     int64            `json:"bytes_before"`
	BytesAfter      int64            `json:"bytes_after"`
	BytesSaved      int64            `json:"bytes_saved"`
	PercentSaved    float64          `json:"percent_saved"`
	Formats         map[string]int64 `json:"formats"`
	Uptime          string           `json:"uptime"`
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:   time.Now(),
		FormatStats: make(map[string]int64),
		Errors:      make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.TotalFilesFound, 1)
}

// AddFilesFound increases the count of found files by n.
func (s *Statistics) AddFilesFound(n int) {
	atomic.AddInt64(&s.TotalFilesFound, int64(n))
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)
}

// RecordSuccess counts a compressed file and its before/after sizes.
func (s *Statistics) RecordSuccess(format string, before, after int64) {
	atomic.AddInt64(&s.FilesCompressed, 1)
	atomic.AddInt64(&s.BytesBefore, before)
	atomic.AddInt64(&s.BytesAfter, after)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FormatStats[format]++
}

// RecordFailure counts a failed file and keeps its error.
func (s *Statistics) RecordFailure(filePath, operation, errorMsg string) {
	atomic.AddInt64(&s.FilesWithErrors, 1)
	s.AddError(filePath, operation, errorMsg)
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize calculates duration and throughput.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	totalProcessed := atomic.LoadInt64(&s.TotalFilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(totalProcessed) / s.Duration.Seconds()
	}
}

// BytesSaved returns before minus after, floored at zero.
func (s *Statistics) BytesSaved() int64 {
	saved := atomic.LoadInt64(&s.BytesBefore) - atomic.LoadInt64(&s.BytesAfter)
	if saved < 0 {
		return 0
	}
	return saved
}

// PercentSaved returns the saved share of the successful input bytes.
func (s *Statistics) PercentSaved() float64 {
	before := atomic.LoadInt64(&s.BytesBefore)
	if before <= 0 {
		return 0
	}
	return float64(s.BytesSaved()) / float64(before) * 100
}

// Snapshot returns a consistent copy of the counters.
func (s *Statistics) Snapshot() Snapshot {
	s.mutex.RLock()
	formats := make(map[string]int64, len(s.FormatStats))
	for k, v := range s.FormatStats {
		formats[k] = v
	}
	s.mutex.RUnlock()

	return Snapshot{
		FilesFound:      atomic.LoadInt64(&s.TotalFilesFound),
		FilesProcessed:  atomic.LoadInt64(&s.TotalFilesProcessed),
		FilesCompressed: atomic.LoadInt64(&s.FilesCompressed),
		FilesWithErrors: atomic.LoadInt64(&s.FilesWithErrors),
		BytesBefore:     atomic.LoadInt64(&s.BytesBefore),
		BytesAfter:      atomic.LoadInt64(&s.BytesAfter),
		BytesSaved:      s.BytesSaved(),
		PercentSaved:    s.PercentSaved(),
		Formats:         formats,
		Uptime:          time.Since(s.StartTime).Round(time.Second).String(),
	}
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	perSecond := s.FilesPerSecond
	s.mutex.RUnlock()

	return fmt.Sprintf(`Image Compressor Statistics Summary:

Files:
		Total Found: %d
		Total Processed: %d
		Compressed: %d
		Errors: %d

Bytes:
		Before: %s
		After: %s
		Saved: %s (%.2f%%)

Performance:
		Duration: %v
		Files/Second: %.2f`,
		atomic.LoadInt64(&s.TotalFilesFound),
		atomic.LoadInt64(&s.TotalFilesProcessed),
		atomic.LoadInt64(&s.FilesCompressed),
		atomic.LoadInt64(&s.FilesWithErrors),
		FormatBytes(atomic.LoadInt64(&s.BytesBefore)),
		FormatBytes(atomic.LoadInt64(&s.BytesAfter)),
		FormatBytes(s.BytesSaved()),
		s.PercentSaved(),
		duration,
		perSecond)
}

// GetFormatBreakdown returns a formatted breakdown of produced formats.
func (s *Statistics) GetFormatBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FormatStats) == 0 {
		return "No format statistics available"
	}

	result := "Format Breakdown:\n"
	for format, count := range s.FormatStats {
		result += fmt.Sprintf("  %s: %d\n", format, count)
	}
	return result
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// FormatBytes returns a human-readable SI size such as "1.2 kB".
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.Bytes(uint64(bytes))
}
