package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/dispatch"
	apperrors "image-compressor-go/internal/errors"
	"image-compressor-go/internal/options"
	"image-compressor-go/internal/statistics"
)

func writePNG(t *testing.T, path string, size int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 3), uint8(y * 5), uint8(x + y), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

// shrinker halves its input and reports a fixed format.
type shrinker struct {
	format codec.Format
	calls  atomic.Int32
}

func (s *shrinker) Compress(input []byte, _ string, _ options.CompressionOptions) (dispatch.Result, error) {
	s.calls.Add(1)
	if len(input) == 0 {
		return dispatch.Result{}, apperrors.Decode("fake", apperrors.ErrEmptyInput)
	}
	return dispatch.Result{Data: input[:len(input)/2], Format: s.format, ContentType: s.format.ContentType()}, nil
}

func TestRunIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		p := filepath.Join(dir, name)
		writePNG(t, p, 32)
		paths = append(paths, p)
	}
	empty := filepath.Join(dir, "empty.png")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	paths = append(paths, empty)

	stats := statistics.NewStatistics()
	o := NewOrchestrator(Config{Options: options.Default(), Jobs: 2}, dispatch.NewDefault(), nil, stats)
	report := o.Run(context.Background(), paths)

	if len(report.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(report.Results))
	}
	for i, res := range report.Results {
		if res.Path != paths[i] {
			t.Errorf("result %d is for %s, want %s", i, res.Path, paths[i])
		}
	}

	failed := report.Results[3]
	if failed.Success || failed.Message == "" || failed.SizeAfter != 0 {
		t.Errorf("empty file result = %+v", failed)
	}
	if !strings.HasPrefix(failed.Message, StepCompress) {
		t.Errorf("message %q should start with %s", failed.Message, StepCompress)
	}

	s := report.Summary()
	if s.Processed != 3 || s.Failed != 1 {
		t.Errorf("processed/failed = %d/%d", s.Processed, s.Failed)
	}

	var before int64
	for _, res := range report.Results[:3] {
		if !res.Success {
			t.Errorf("%s failed: %s", res.Path, res.Message)
			continue
		}
		before += res.SizeBefore
		if _, err := os.Stat(filepath.Join(dir, "c_"+filepath.Base(res.Path))); err != nil {
			t.Errorf("missing output for %s: %v", res.Path, err)
		}
	}
	if s.BytesBefore != before {
		t.Errorf("aggregate before = %d, want %d", s.BytesBefore, before)
	}

	snap := stats.Snapshot()
	if snap.FilesCompressed != 3 || snap.FilesWithErrors != 1 || snap.FilesProcessed != 4 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestRunOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writePNG(t, src, 16)
	orig, _ := os.ReadFile(src)

	fake := &shrinker{format: codec.FormatPNG}
	o := NewOrchestrator(Config{Options: options.Default(), Overwrite: true, OutputDir: filepath.Join(dir, "ignored")}, fake, nil, nil)
	report := o.Run(context.Background(), []string{src})

	res := report.Results[0]
	if !res.Success {
		t.Fatalf("overwrite failed: %s", res.Message)
	}
	got, _ := os.ReadFile(src)
	if len(got) != len(orig)/2 {
		t.Errorf("original has %d bytes, want %d", len(got), len(orig)/2)
	}
	for _, leftover := range []string{"photo.png.bak", "c_photo.png"} {
		if _, err := os.Stat(filepath.Join(dir, leftover)); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", leftover)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "ignored")); !os.IsNotExist(err) {
		t.Error("output directory should be ignored in overwrite mode")
	}
}

func TestReplaceOriginalRollsBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	if err := os.WriteFile(src, []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}

	step, err := replaceOriginal(src, filepath.Join(dir, "does-not-exist"))
	if step != StepOverwrite || !apperrors.IsIO(err) {
		t.Fatalf("step=%q err=%v", step, err)
	}
	data, err := os.ReadFile(src)
	if err != nil || string(data) != "original" {
		t.Errorf("original not restored: %q %v", data, err)
	}
	if _, err := os.Stat(BackupPath(src)); !os.IsNotExist(err) {
		t.Error("backup should have been moved back")
	}
}

func TestRunReadFailure(t *testing.T) {
	fake := &shrinker{format: codec.FormatPNG}
	o := NewOrchestrator(Config{Options: options.Default()}, fake, nil, nil)
	report := o.Run(context.Background(), []string{filepath.Join(t.TempDir(), "gone.png")})

	res := report.Results[0]
	if res.Success || !strings.HasPrefix(res.Message, StepRead) {
		t.Errorf("result = %+v", res)
	}
	if !apperrors.IsIO(res.Err) {
		t.Errorf("expected IO error, got %v", res.Err)
	}
	if fake.calls.Load() != 0 {
		t.Error("engine should not run when read fails")
	}
}

func TestRunConversionNaming(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	src := filepath.Join(dir, "pic.png")
	writePNG(t, src, 8)

	fake := &shrinker{format: codec.FormatWebP}
	opts := options.Default().WithTarget(options.TargetWebP)
	report := NewOrchestrator(Config{Options: opts, OutputDir: out}, fake, nil, nil).Run(context.Background(), []string{src})

	want := filepath.Join(out, "c_pic.webp")
	if report.Results[0].OutputPath != want {
		t.Errorf("output = %s, want %s", report.Results[0].OutputPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Error(err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &shrinker{format: codec.FormatPNG}
	report := NewOrchestrator(Config{Options: options.Default()}, fake, nil, nil).Run(ctx, []string{"a.png", "b.png"})
	if len(report.Results) != 0 || fake.calls.Load() != 0 {
		t.Errorf("cancelled run processed %d files", len(report.Results))
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(3)
	var inFlight, peak atomic.Int32
	ran := p.Run(context.Background(), 20, func(_ context.Context, _ int) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		inFlight.Add(-1)
	})
	if ran != 20 {
		t.Errorf("ran %d tasks, want 20", ran)
	}
	if peak.Load() > 3 {
		t.Errorf("peak concurrency %d exceeds 3", peak.Load())
	}
	if NewPool(0).Size() < 1 {
		t.Error("default pool size should be at least 1")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.PNG", "a.jpg", "notes.txt", "sub/c.heic", "sub/d.tif"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(sub, "c.heic"),
		filepath.Join(sub, "d.tif"),
	}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("Discover = %v, want %v", files, want)
	}

	single, err := Discover(filepath.Join(dir, "a.jpg"))
	if err != nil || len(single) != 1 {
		t.Errorf("single file = %v, %v", single, err)
	}
	none, err := Discover(filepath.Join(dir, "notes.txt"))
	if err != nil || len(none) != 0 {
		t.Errorf("unsupported file = %v, %v", none, err)
	}

	_, err = Discover(filepath.Join(dir, "missing"))
	if !apperrors.IsIO(err) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing input error = %v", err)
	}
}

func TestOutputNaming(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		outDir    string
		overwrite bool
		target    options.Target
		produced  codec.Format
		want      string
	}{
		{"same dir", "/in/a.png", "", false, options.TargetNone, codec.FormatPNG, "/in/c_a.png"},
		{"output dir", "/in/a.jpg", "/out", false, options.TargetNone, codec.FormatJPEG, "/out/c_a.jpg"},
		{"overwrite ignores output dir", "/in/a.png", "/out", true, options.TargetNone, codec.FormatPNG, "/in/c_a.png"},
		{"webp conversion", "/in/a.png", "", false, options.TargetWebP, codec.FormatWebP, "/in/c_a.webp"},
		{"jpeg conversion", "/in/a.png", "", false, options.TargetJPEG, codec.FormatJPEG, "/in/c_a.jpg"},
		{"ico fallback", "/in/a.png", "", false, options.TargetICO, codec.FormatPNG, "/in/c_a.png"},
		{"bmp source falls back to png", "/in/a.bmp", "", false, options.TargetNone, codec.FormatPNG, "/in/c_a.png"},
		{"heic source becomes jpg", "/in/a.HEIC", "", false, options.TargetNone, codec.FormatJPEG, "/in/c_a.jpg"},
		{"uppercase jpeg kept", "/in/a.JPEG", "", false, options.TargetNone, codec.FormatJPEG, "/in/c_a.JPEG"},
	}

	for _, tt := range tests {
		ext := OutputExtension(tt.src, tt.target, tt.produced)
		got := OutputPath(filepath.FromSlash(tt.src), filepath.FromSlash(tt.outDir), tt.overwrite, ext)
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("%s: got %s, want %s", tt.name, got, tt.want)
		}
	}

	if BackupPath("/in/a.png") != "/in/a.png.bak" {
		t.Errorf("BackupPath = %s", BackupPath("/in/a.png"))
	}
}

func TestReportPrint(t *testing.T) {
	r := &Report{Results: []FileResult{
		{Path: "/x/a.png", SizeBefore: 2000, SizeAfter: 1000, Success: true},
		{Path: "/x/b.png", SizeBefore: 10, Message: "compress-failed: boom"},
	}}

	var out, errOut bytes.Buffer
	r.Print(&out, &errOut)

	wantOut := "a.png: 2.0 kB → 1.0 kB (saved 1.0 kB / 50.00%)\n\nProcessed 1 files. Total saved: 1.0 kB (50.00%)\n"
	if out.String() != wantOut {
		t.Errorf("stdout = %q, want %q", out.String(), wantOut)
	}
	if errOut.String() != "/x/b.png: failed (compress-failed: boom)\n" {
		t.Errorf("stderr = %q", errOut.String())
	}

	out.Reset()
	errOut.Reset()
	(&Report{}).Print(&out, &errOut)
	if out.Len() != 0 || errOut.String() != "No files compressed.\n" {
		t.Errorf("empty report: stdout=%q stderr=%q", out.String(), errOut.String())
	}
}
