package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	apperrors "image-compressor-go/internal/errors"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 3030 || cfg.Server.MaxUploadMB != 50 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.CompressTimeout != 90*time.Second {
		t.Errorf("compress timeout = %v", cfg.Server.CompressTimeout)
	}
	o := cfg.Options()
	if !o.PNGLossy || !o.Oxipng || o.PNGQuality != "50-80" {
		t.Errorf("options = %+v", o)
	}
	if cfg.MaxUploadBytes() != 50<<20 {
		t.Errorf("max upload bytes = %d", cfg.MaxUploadBytes())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `server:
  host: 0.0.0.0
  port: 8080
  compress_timeout: 5s
compression:
  png_quality: "20-60"
  oxipng: false
batch:
  jobs: -3
logging:
  level: DEBUG
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IMAGE_COMPRESSOR_SERVER_MAX_UPLOAD_MB", "7")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "0.0.0.0" || cfg.Server.Port != 8080 || cfg.Server.CompressTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.MaxUploadMB != 7 {
		t.Errorf("env override ignored: max_upload_mb = %d", cfg.Server.MaxUploadMB)
	}
	if cfg.Compression.PNGQuality != "20-60" || cfg.Compression.Oxipng {
		t.Errorf("compression = %+v", cfg.Compression)
	}
	if !cfg.Compression.PNGLossy {
		t.Error("png_lossy should keep its default")
	}
	if cfg.Batch.Jobs != 0 {
		t.Errorf("negative jobs should normalize to 0, got %d", cfg.Batch.Jobs)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: chatty\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(viper.New(), path)
	if apperrors.KindOf(err) != apperrors.KindConfig {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 3030 || cfg.Server.AllowedOrigin != "*" || cfg.Compression.PNGQuality != "50-80" {
		t.Errorf("normalized = %+v", cfg)
	}
	if cfg.Address() != "127.0.0.1:3030" {
		t.Errorf("address = %s", cfg.Address())
	}
	cfg.Server.Host = "0.0.0.0"
	if cfg.Address() != "0.0.0.0:3030" {
		t.Errorf("address = %s", cfg.Address())
	}

	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an out-of-range port")
	}
}
