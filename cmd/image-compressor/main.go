package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"image-compressor-go/internal/batch"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/dispatch"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metrics"
	"image-compressor-go/internal/options"
	"image-compressor-go/internal/statistics"
	"image-compressor-go/internal/web"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	outputDir  string
	overwrite  bool
	jobs       int
	pngLossy   bool
	pngQuality string
	oxipng     bool
	toWebP     bool
	toAVIF     bool
	format     string
	webMode    bool
	host       string
	port       int
	verbose    bool
	quiet      bool
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-compressor [input]",
	Short: "Compress and convert images in batch or through a web UI",
	Long: `image-compressor recompresses PNG, JPEG, WebP, BMP, TIFF and HEIC images
and converts them between formats.

Given a file or directory it compresses every supported image in parallel and
writes c_<name> next to each source (or into --output). Without an input, or
with --web, it starts the web interface instead.

Features:
- Palette-quantized or lossless PNG with structural optimization
- Progressive JPEG, WebP and AVIF encoding
- Conversion to TIFF, BMP and ICO
- HEIC/HEIF ingest to JPEG
- In-place replacement with a safety backup (--overwrite)`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if webMode || len(args) == 0 {
			return runServe(cmd)
		}
		return runBatch(cmd, args[0])
	},
}

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts the upload-and-compress web interface.

Endpoints:
- GET  /              upload page
- POST /api/compress  multipart upload, returns the compressed image
- GET  /api/stats     running statistics
- GET  /ws            live compression events
- GET  /metrics       Prometheus metrics

Access the interface at http://127.0.0.1:<port> (default: 3030); use --host
to listen on other interfaces.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "interface to bind the web server to")
	rootCmd.PersistentFlags().IntVar(&port, "port", 3030, "port to run web server on")

	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "directory for compressed copies (default: next to each source)")
	rootCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace originals, keeping a .bak until the swap succeeds")
	rootCmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "parallel workers (default: number of CPUs)")
	rootCmd.Flags().BoolVar(&pngLossy, "png-lossy", true, "quantize PNGs to a palette")
	rootCmd.Flags().StringVar(&pngQuality, "png-quality", "50-80", "quality range min-max; its midpoint drives JPEG, WebP and AVIF")
	rootCmd.Flags().BoolVar(&oxipng, "oxipng", true, "run the lossless PNG structure optimizer")
	rootCmd.Flags().BoolVar(&toWebP, "to-webp", false, "convert to WebP")
	rootCmd.Flags().BoolVar(&toAVIF, "to-avif", false, "convert to AVIF")
	rootCmd.Flags().StringVar(&format, "format", "", "convert to webp, avif, jpeg, png, tiff, bmp or ico")
	rootCmd.Flags().BoolVar(&webMode, "web", false, "start the web interface")

	rootCmd.AddCommand(serveCmd)
}

// initEnv loads a .env file, if any, before viper reads the environment.
func initEnv() {
	if err := godotenv.Load(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Loaded environment from .env")
	}
}

// runBatch compresses every supported image under input.
func runBatch(cmd *cobra.Command, input string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if format != "" && format != "original" && options.ParseTarget(format) == options.TargetNone {
		return fmt.Errorf("unknown --format %q (valid: webp, avif, jpeg, png, tiff, bmp, ico)", format)
	}

	log := setupLogger(cfg)

	files, err := batch.Discover(input)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "No supported image files found.")
		return nil
	}

	opts := options.FromFlags(options.Flags{
		PNGLossy:   cfg.Compression.PNGLossy,
		PNGQuality: cfg.Compression.PNGQuality,
		Oxipng:     cfg.Compression.Oxipng,
		ToWebP:     toWebP,
		ToAVIF:     toAVIF,
		Format:     format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := statistics.NewStatistics()
	orch := batch.NewOrchestrator(batch.Config{
		Options:   opts,
		OutputDir: outputDir,
		Overwrite: overwrite,
		Jobs:      cfg.Batch.Jobs,
	}, dispatch.NewDefault(), log, stats)

	report := orch.Run(ctx, files)
	report.Print(os.Stdout, os.Stderr)

	log.Debug("\n" + stats.GetSummary())
	log.Debug("\n" + stats.GetFormatBreakdown())
	if stats.Snapshot().FilesWithErrors > 0 {
		log.Debug(stats.GetErrorSummary())
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	server := web.NewServer(cfg, log, dispatch.NewDefault(), statistics.NewStatistics(), metrics.New())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := server.Start(); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(os.Stderr, "Web UI running at http://%s\n", server.Addr())
		fmt.Fprintf(os.Stderr, "Press Ctrl+C to stop the server\n")
	}

	<-sigChan
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped gracefully")
	return nil
}

// loadConfig loads configuration and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("png-quality") {
		cfg.Compression.PNGQuality = pngQuality
	}
	if flags.Changed("png-lossy") {
		cfg.Compression.PNGLossy = pngLossy
	}
	if flags.Changed("oxipng") {
		cfg.Compression.Oxipng = oxipng
	}
	if flags.Changed("jobs") {
		cfg.Batch.Jobs = jobs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.DefaultConfig()
	loggerCfg.Level = cfg.Logging.Level
	loggerCfg.FilePath = cfg.Logging.FilePath
	loggerCfg.MaxSize = cfg.Logging.MaxSize
	loggerCfg.MaxBackups = cfg.Logging.MaxBackups
	loggerCfg.MaxAge = cfg.Logging.MaxAge
	loggerCfg.Compress = cfg.Logging.Compress
	loggerCfg.Console = !quiet

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
