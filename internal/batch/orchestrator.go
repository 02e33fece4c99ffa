package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/dispatch"
	apperrors "image-compressor-go/internal/errors"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/options"
	"image-compressor-go/internal/statistics"
)

// Failure message prefixes, one per step that can fail.
const (
	StepRead      = "read-failed"
	StepCompress  = "compress-failed"
	StepWrite     = "write-failed"
	StepBackup    = "backup-failed"
	StepOverwrite = "overwrite-failed"
)

// Compressor is the part of the dispatch engine the orchestrator needs.
type Compressor interface {
	Compress(input []byte, ext string, opts options.CompressionOptions) (dispatch.Result, error)
}

// FileResult is the outcome of one file. SizeAfter is zero and Message is
// non-empty when Success is false.
type FileResult struct {
	Path       string
	OutputPath string
	SizeBefore int64
	SizeAfter  int64
	Format     codec.Format
	Success    bool
	Message    string
	Err        error
	Duration   time.Duration
}

// Config holds the batch settings that do not change per file.
type Config struct {
	Options   options.CompressionOptions
	OutputDir string
	Overwrite bool
	Jobs      int
}

// Orchestrator compresses files in parallel. A failure in one file is
// recorded in its FileResult and never affects the others.
type Orchestrator struct {
	cfg    Config
	engine Compressor
	pool   *Pool
	logger *logrus.Logger
	stats  *statistics.Statistics
}

// NewOrchestrator returns an Orchestrator. A nil logger discards output and
// a nil stats creates a fresh one.
func NewOrchestrator(cfg Config, engine Compressor, log *logrus.Logger, stats *statistics.Statistics) *Orchestrator {
	if log == nil {
		log = logger.Discard()
	}
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &Orchestrator{
		cfg:    cfg,
		engine: engine,
		pool:   NewPool(cfg.Jobs),
		logger: log,
		stats:  stats,
	}
}

// Run compresses every path and returns a Report in input order. Files not
// started before ctx was cancelled are left out of the report.
func (o *Orchestrator) Run(ctx context.Context, paths []string) *Report {
	o.stats.AddFilesFound(len(paths))

	if o.cfg.OutputDir != "" && !o.cfg.Overwrite {
		if err := os.MkdirAll(o.cfg.OutputDir, 0755); err != nil {
			o.logger.WithError(err).Warnf("Failed to create output directory %s", o.cfg.OutputDir)
		}
	}

	o.logger.WithFields(logrus.Fields{
		"files":   len(paths),
		"workers": o.pool.Size(),
	}).Info("Starting batch compression")

	results := make([]FileResult, len(paths))
	ran := make([]bool, len(paths))

	o.pool.Run(ctx, len(paths), func(_ context.Context, i int) {
		results[i] = o.processFile(paths[i])
		ran[i] = true
	})

	report := &Report{}
	for i := range results {
		if ran[i] {
			report.Results = append(report.Results, results[i])
		}
	}

	o.stats.Finalize()
	if ctx.Err() != nil {
		o.logger.Warnf("Batch cancelled after %d of %d files", len(report.Results), len(paths))
	}
	return report
}

func (o *Orchestrator) processFile(path string) (res FileResult) {
	start := time.Now()
	res.Path = path
	log := logger.WithFile(o.logger, path)

	defer func() {
		res.Duration = time.Since(start)
		o.stats.IncrementFilesProcessed()
		if res.Success {
			o.stats.RecordSuccess(string(res.Format), res.SizeBefore, res.SizeAfter)
			log.WithFields(logrus.Fields{
				"size_before": res.SizeBefore,
				"size_after":  res.SizeAfter,
				"format":      res.Format,
				"duration":    res.Duration,
			}).Debug("File compressed")
		} else {
			o.stats.RecordFailure(path, "compress", res.Message)
			if apperrors.IsIO(res.Err) {
				log.WithError(res.Err).Error("File failed")
			} else {
				log.WithError(res.Err).Warn("File failed")
			}
		}
	}()

	input, err := os.ReadFile(path)
	if err != nil {
		return fail(res, StepRead, apperrors.IO("read", err))
	}
	res.SizeBefore = int64(len(input))

	out, err := o.engine.Compress(input, filepath.Ext(path), o.cfg.Options)
	if err != nil {
		return fail(res, StepCompress, err)
	}
	res.Format = out.Format

	ext := OutputExtension(path, o.cfg.Options.Target(), out.Format)
	outPath := OutputPath(path, o.cfg.OutputDir, o.cfg.Overwrite, ext)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fail(res, StepWrite, apperrors.IO("mkdir", err))
	}
	if err := os.WriteFile(outPath, out.Data, 0644); err != nil {
		return fail(res, StepWrite, apperrors.IO("write", err))
	}
	res.OutputPath = outPath

	if o.cfg.Overwrite {
		logger.WithFileOperation(o.logger, path, "overwrite").Debug("Replacing original")
		if step, err := replaceOriginal(path, outPath); err != nil {
			res.OutputPath = ""
			return fail(res, step, err)
		}
		res.OutputPath = path
	}

	res.SizeAfter = int64(len(out.Data))
	res.Success = true
	return res
}

// replaceOriginal moves original to its backup name, moves compressed into
// its place and removes the backup. If the second rename fails the backup
// is restored.
func replaceOriginal(original, compressed string) (string, error) {
	backup := BackupPath(original)

	if err := os.Rename(original, backup); err != nil {
		_ = os.Remove(compressed)
		return StepBackup, apperrors.IO("backup", err)
	}
	if err := os.Rename(compressed, original); err != nil {
		if rerr := os.Rename(backup, original); rerr != nil {
			return StepOverwrite, apperrors.IO("overwrite", fmt.Errorf("%v (restore failed, original kept at %s: %v)", err, backup, rerr))
		}
		_ = os.Remove(compressed)
		return StepOverwrite, apperrors.IO("overwrite", err)
	}
	_ = os.Remove(backup)
	return "", nil
}

func fail(res FileResult, step string, err error) FileResult {
	res.Success = false
	res.SizeAfter = 0
	res.Err = err
	res.Message = fmt.Sprintf("%s: %v", step, err)
	return res
}
