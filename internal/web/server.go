package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"image-compressor-go/internal/batch"
	"image-compressor-go/internal/codec"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/dispatch"
	apperrors "image-compressor-go/internal/errors"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metrics"
	"image-compressor-go/internal/options"
	"image-compressor-go/internal/statistics"
)

//go:embed static/index.html
var indexHTML []byte

// Response headers set on successful compressions.
const (
	HeaderRequestID      = "X-Request-ID"
	HeaderOriginalSize   = "X-Original-Size"
	HeaderCompressedSize = "X-Compressed-Size"
)

// Form field carrying the uploaded image.
const fieldFile = "file"

// multipartMemory is how much of a form is kept in memory before spilling
// file parts to disk.
const multipartMemory = 32 << 20

type requestIDKey struct{}

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	handler    http.Handler
	httpServer *http.Server
	listener   net.Listener

	engine  batch.Compressor
	stats   *statistics.Statistics
	metrics *metrics.Metrics
	hub     *Hub
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// CompressEvent is the payload of compress_completed and compress_failed.
type CompressEvent struct {
	RequestID      string  `json:"request_id"`
	Filename       string  `json:"filename"`
	OutputFilename string  `json:"output_filename,omitempty"`
	ContentType    string  `json:"content_type,omitempty"`
	OriginalSize   int64   `json:"original_size"`
	CompressedSize int64   `json:"compressed_size,omitempty"`
	PercentSaved   float64 `json:"percent_saved,omitempty"`
	DurationMS     int64   `json:"duration_ms"`
	Error          string  `json:"error,omitempty"`
}

// NewServer wires the routes. cfg must be validated; nil means defaults. A
// nil engine uses the production codecs and a nil stats or metrics gets a
// fresh instance.
func NewServer(cfg *config.Config, log *logrus.Logger, engine batch.Compressor, stats *statistics.Statistics, m *metrics.Metrics) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.Discard()
	}
	if engine == nil {
		engine = dispatch.NewDefault()
	}
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	if m == nil {
		m = metrics.New()
	}

	s := &Server{
		cfg:     cfg,
		log:     log,
		router:  mux.NewRouter(),
		engine:  engine,
		stats:   stats,
		metrics: m,
		hub:     NewHub(log, nil),
	}

	s.setupRoutes()
	s.handler = s.withRequestID(s.withCORS(s.router))
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.Handle("/compress", http.TimeoutHandler(
		http.HandlerFunc(s.handleCompress),
		s.cfg.Server.CompressTimeout,
		`{"success":false,"error":"compression timed out"}`,
	)).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// WebSocket endpoint
	s.router.Handle("/ws", s.hub)

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	// Main page
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the configured port and serves in the background. A bind
// failure is returned immediately.
func (s *Server) Start() error {
	addr := s.cfg.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", addr, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://%s", ln.Addr())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Web server stopped")
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    s.stats.Snapshot(),
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	requestID := RequestID(r.Context())
	log := logger.WithRequest(s.log, requestID)

	limit := s.cfg.MaxUploadBytes()
	tooLargeMsg := fmt.Sprintf("upload exceeds %d MB", s.cfg.Server.MaxUploadMB)
	if r.ContentLength > limit {
		s.metrics.ObserveRejected()
		log.Warn(tooLargeMsg)
		s.writeError(w, tooLargeMsg, http.StatusRequestEntityTooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.metrics.ObserveRejected()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn(tooLargeMsg)
			s.writeError(w, tooLargeMsg, http.StatusRequestEntityTooLarge)
			return
		}
		s.writeError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	input, filename, err := readUpload(r)
	if err != nil {
		s.metrics.ObserveRejected()
		log.WithError(err).Warn("No file data received")
		s.writeError(w, "No file data received", http.StatusBadRequest)
		return
	}

	opts := options.FromForm(s.cfg.Options(), formFields(r))
	ext := filepath.Ext(filename)
	plan := s.planFormat(ext, opts)
	log = log.WithFields(logrus.Fields{"file": filename, "size": len(input)})
	log.Info("Processing upload")

	start := time.Now()
	res, err := s.engine.Compress(input, ext, opts)
	elapsed := time.Since(start)

	s.stats.IncrementFilesFound()
	s.stats.IncrementFilesProcessed()

	if err != nil {
		s.stats.RecordFailure(filename, "compress", err.Error())
		s.metrics.ObserveFailure(plan, elapsed)
		entry := log.WithError(err).WithField("kind", apperrors.KindOf(err))
		switch {
		case apperrors.IsDecode(err):
			entry.Warn("Upload could not be decoded")
		case apperrors.IsCodec(err):
			entry.Error("Encoder failed")
		default:
			entry.Error("Compression failed")
		}
		s.hub.Broadcast("compress_failed", CompressEvent{
			RequestID:    requestID,
			Filename:     filename,
			OriginalSize: int64(len(input)),
			DurationMS:   elapsed.Milliseconds(),
			Error:        err.Error(),
		})
		s.writeError(w, "Compression failed", http.StatusInternalServerError)
		return
	}

	outName := OutputFilename(filename, opts.Target(), res.Format)
	before, after := int64(len(input)), int64(len(res.Data))
	s.stats.RecordSuccess(string(res.Format), before, after)
	s.metrics.ObserveSuccess(string(res.Format), len(input), len(res.Data), elapsed)

	var pct float64
	if before > 0 && after < before {
		pct = float64(before-after) / float64(before) * 100
	}
	log.WithFields(logrus.Fields{
		"output":   outName,
		"bytes":    after,
		"saved":    fmt.Sprintf("%.1f%%", pct),
		"duration": elapsed,
	}).Info("Compressed upload")

	s.hub.Broadcast("compress_completed", CompressEvent{
		RequestID:      requestID,
		Filename:       filename,
		OutputFilename: outName,
		ContentType:    res.ContentType,
		OriginalSize:   before,
		CompressedSize: after,
		PercentSaved:   pct,
		DurationMS:     elapsed.Milliseconds(),
	})

	h := w.Header()
	h.Set("Content-Type", res.ContentType)
	h.Set("Content-Disposition", ContentDisposition(outName))
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("ETag", fmt.Sprintf(`"%016x"`, xxhash.Sum64(res.Data)))
	h.Set(HeaderOriginalSize, strconv.FormatInt(before, 10))
	h.Set(HeaderCompressedSize, strconv.FormatInt(after, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// planFormat names the format a request is expected to produce, for the
// metrics label of failed requests.
func (s *Server) planFormat(ext string, opts options.CompressionOptions) string {
	if dispatch.IsHEIC(ext) {
		return string(codec.FormatJPEG)
	}
	if f, ok := opts.Target().Format(); ok {
		return string(f)
	}
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return string(codec.FormatJPEG)
	default:
		return string(codec.FormatPNG)
	}
}

func readUpload(r *http.Request) ([]byte, string, error) {
	file, header, err := r.FormFile(fieldFile)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", apperrors.ErrEmptyInput
	}

	filename := filepath.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if filename == "" || filename == "." || filename == "/" {
		filename = "image"
	}
	return data, filename, nil
}

// formFields flattens the non-file form values, first value wins.
func formFields(r *http.Request) map[string]string {
	fields := make(map[string]string)
	if r.MultipartForm == nil {
		return fields
	}
	for key, values := range r.MultipartForm.Value {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields
}

// OutputFilename names the download. Converted output, including HEIC
// input, gets the produced format's extension; anything else is c_<name>.
func OutputFilename(filename string, target options.Target, produced codec.Format) string {
	ext := filepath.Ext(filename)
	if target == options.TargetNone && !dispatch.IsHEIC(ext) {
		return batch.OutputPrefix + filename
	}
	return strings.TrimSuffix(filename, ext) + "." + produced.Extension()
}

// ContentDisposition returns an attachment header with filename quoted.
// Quotes, backslashes and control characters are dropped from name.
func ContentDisposition(name string) string {
	clean := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	return `attachment; filename="` + clean + `"`
}

// RequestID returns the ID assigned to the request by the server.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.Server.AllowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		h.Set("Access-Control-Expose-Headers", strings.Join([]string{
			"Content-Disposition", "ETag", HeaderRequestID, HeaderOriginalSize, HeaderCompressedSize,
		}, ", "))

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
