package batch

import (
	"fmt"
	"io"
	"path/filepath"

	"image-compressor-go/internal/statistics"
)

// Report holds the results of a batch run in input order.
type Report struct {
	Results []FileResult
}

// Summary aggregates successful files only.
type Summary struct {
	Processed   int
	Failed      int
	BytesBefore int64
	BytesAfter  int64
}

// Saved returns the bytes saved, floored at zero.
func (s Summary) Saved() int64 {
	return saved(s.BytesBefore, s.BytesAfter)
}

// Percent returns the saved share of BytesBefore.
func (s Summary) Percent() float64 {
	return percent(s.BytesBefore, s.BytesAfter)
}

// Summary computes the aggregate counters.
func (r *Report) Summary() Summary {
	var s Summary
	for _, res := range r.Results {
		if !res.Success {
			s.Failed++
			continue
		}
		s.Processed++
		s.BytesBefore += res.SizeBefore
		s.BytesAfter += res.SizeAfter
	}
	return s
}

// Print writes one line per file and a summary line. Successes and the
// summary go to out; failures and the empty-batch notice go to errOut.
func (r *Report) Print(out, errOut io.Writer) {
	for _, res := range r.Results {
		if !res.Success {
			fmt.Fprintf(errOut, "%s: failed (%s)\n", res.Path, res.Message)
			continue
		}
		fmt.Fprintf(out, "%s: %s → %s (saved %s / %.2f%%)\n",
			filepath.Base(res.Path),
			statistics.FormatBytes(res.SizeBefore),
			statistics.FormatBytes(res.SizeAfter),
			statistics.FormatBytes(saved(res.SizeBefore, res.SizeAfter)),
			percent(res.SizeBefore, res.SizeAfter))
	}

	s := r.Summary()
	if s.Processed == 0 {
		fmt.Fprintln(errOut, "No files compressed.")
		return
	}
	fmt.Fprintf(out, "\nProcessed %d files. Total saved: %s (%.2f%%)\n",
		s.Processed, statistics.FormatBytes(s.Saved()), s.Percent())
}

func saved(before, after int64) int64 {
	if after >= before {
		return 0
	}
	return before - after
}

func percent(before, after int64) float64 {
	if before <= 0 {
		return 0
	}
	return float64(saved(before, after)) / float64(before) * 100
}
