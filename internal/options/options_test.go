package options

import (
	"testing"

	"image-compressor-go/internal/quality"
)

func TestDefault(t *testing.T) {
	o := Default()
	if !o.PNGLossy || !o.Oxipng {
		t.Error("png_lossy and oxipng should default to true")
	}
	if o.PNGQuality != "50-80" {
		t.Errorf("png_quality = %q", o.PNGQuality)
	}
	if o.Target() != TargetNone {
		t.Errorf("target = %v, want none", o.Target())
	}
}

func TestTargetPriority(t *testing.T) {
	tests := []struct {
		name string
		opts CompressionOptions
		want Target
	}{
		{"none", CompressionOptions{}, TargetNone},
		{"webp beats avif", CompressionOptions{ToWebP: true, ToAVIF: true}, TargetWebP},
		{"avif beats jpeg", CompressionOptions{ToAVIF: true, ToJPEG: true}, TargetAVIF},
		{"jpeg beats png", CompressionOptions{ToJPEG: true, ToPNG: true}, TargetJPEG},
		{"png beats tiff", CompressionOptions{ToPNG: true, ToTIFF: true}, TargetPNG},
		{"tiff beats bmp", CompressionOptions{ToTIFF: true, ToBMP: true}, TargetTIFF},
		{"bmp beats ico", CompressionOptions{ToBMP: true, ToICO: true}, TargetBMP},
		{"ico alone", CompressionOptions{ToICO: true}, TargetICO},
		{"all set", CompressionOptions{
			ToWebP: true, ToAVIF: true, ToJPEG: true, ToPNG: true,
			ToTIFF: true, ToBMP: true, ToICO: true,
		}, TargetWebP},
	}

	for _, tt := range tests {
		if got := tt.opts.Target(); got != tt.want {
			t.Errorf("%s: Target() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestParseTarget(t *testing.T) {
	tests := map[string]Target{
		"webp": TargetWebP,
		"AVIF": TargetAVIF,
		"jpeg": TargetJPEG,
		"jpg":  TargetJPEG,
		"png":  TargetPNG,
		"tiff": TargetTIFF,
		"bmp":  TargetBMP,
		"ico":  TargetICO,
		"":     TargetNone,
		"gif":  TargetNone,
	}
	for in, want := range tests {
		if got := ParseTarget(in); got != want {
			t.Errorf("ParseTarget(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromForm(t *testing.T) {
	o := FromForm(Default(), map[string]string{
		"png_quality":   "20-60",
		"output_format": "avif",
		"oxipng":        "false",
		"png_lossy":     "yes",
		"unknown_key":   "ignored",
	})

	if o.PNGQuality != "20-60" {
		t.Errorf("png_quality = %q", o.PNGQuality)
	}
	if o.Target() != TargetAVIF {
		t.Errorf("target = %v", o.Target())
	}
	if o.Oxipng {
		t.Error("oxipng should be false")
	}
	if o.PNGLossy {
		t.Error("png_lossy should be false for anything but \"true\"")
	}
}

func TestFromFormKeepsOriginalFormat(t *testing.T) {
	o := FromForm(Default(), map[string]string{"output_format": "original"})
	if o.Target() != TargetNone {
		t.Errorf("target = %v, want none", o.Target())
	}
	if !o.Oxipng || !o.PNGLossy {
		t.Error("absent boolean fields should keep their defaults")
	}
}

func TestFromFormOverlaysBase(t *testing.T) {
	base := Default()
	base.PNGQuality = "30-40"
	base.Oxipng = false

	o := FromForm(base, map[string]string{"png_lossy": "false"})
	if o.PNGQuality != "30-40" || o.Oxipng {
		t.Errorf("absent fields should come from base, got %+v", o)
	}
	if o.PNGLossy {
		t.Error("png_lossy should be overridden by the form")
	}

	o = FromForm(base, map[string]string{"png_quality": "70-90", "oxipng": "true"})
	if o.PNGQuality != "70-90" || !o.Oxipng {
		t.Errorf("form fields should win, got %+v", o)
	}
}

func TestFromFlags(t *testing.T) {
	o := FromFlags(Flags{PNGLossy: true, Oxipng: false, ToAVIF: true, Format: "webp"})
	if o.Target() != TargetWebP {
		t.Errorf("target = %v, want webp", o.Target())
	}
	if o.PNGQuality != quality.DefaultText {
		t.Errorf("png_quality = %q", o.PNGQuality)
	}
	if o.Oxipng {
		t.Error("oxipng should follow the flag")
	}
}

func TestSharedQuality(t *testing.T) {
	tests := map[string]int{
		"50-80":   65,
		"20-60":   40,
		"90-10":   50,
		"bogus":   65,
		"100":     90,
		"255-255": 255,
	}
	for spec, want := range tests {
		o := Default()
		o.PNGQuality = spec
		if got := o.SharedQuality(); got != want {
			t.Errorf("SharedQuality(%q) = %d, want %d", spec, got, want)
		}
	}
}

func TestTargetFormat(t *testing.T) {
	if _, ok := TargetNone.Format(); ok {
		t.Error("TargetNone should have no format")
	}
	f, ok := TargetJPEG.Format()
	if !ok || f.Extension() != "jpg" {
		t.Errorf("jpeg format = %v %v", f, ok)
	}
}
