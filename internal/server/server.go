package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fmueller/voxsub/internal/correction"
	"github.com/fmueller/voxsub/internal/pipeline"
	"github.com/fmueller/voxsub/internal/quality"
	"github.com/fmueller/voxsub/internal/transcript"
	"github.com/fmueller/voxsub/internal/version"
	"github.com/fmueller/voxsub/internal/whisper"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultMaxUploadBytes = 100 << 20
	defaultRunTimeout     = 15 * time.Minute
)

var ginModeOnce sync.Once

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
}

type Options struct {
	MaxUploadBytes int64
	// RunTimeout bounds a whole pipeline run started by a request.
	RunTimeout time.Duration
	Language   string
	Logger     *zap.Logger
}

type Server struct {
	runner   Runner
	analyzer *quality.Analyzer
	catalog  whisper.Catalog
	opts     Options
	logger   *zap.Logger
}

func New(runner Runner, analyzer *quality.Analyzer, catalog whisper.Catalog, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if analyzer == nil {
		analyzer = quality.NewAnalyzer(quality.DefaultOptions())
	}
	return &Server{runner: runner, analyzer: analyzer, catalog: catalog, opts: opts, logger: logger}
}

// Handler returns the HTTP routes of the API.
func (s *Server) Handler() http.Handler {
	ginModeOnce.Do(func() { gin.SetMode(gin.ReleaseMode) })
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.MaxMultipartMemory = s.opts.MaxUploadBytes

	r.GET("/healthz", s.handleHealth)
	v1 := r.Group("/v1")
	{
		v1.GET("/configs", s.handleConfigs)
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/runs", s.handleRun)
		v1.GET("/runs/ws", s.handleRunStream)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, bind string) error {
	srv := &http.Server{
		Addr:              bind,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("bind", bind))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", bind, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(started)),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "build": version.Current()})
}

type configView struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	LatencyRank int     `json:"latency_rank"`
	QualityRank int     `json:"quality_rank"`
}

func (s *Server) handleConfigs(c *gin.Context) {
	configs := s.catalog.Configs()
	views := make([]configView, 0, len(configs))
	for _, cfg := range configs {
		views = append(views, configView{
			Name:        cfg.Name,
			Description: cfg.Description,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			LatencyRank: cfg.LatencyRank,
			QualityRank: cfg.QualityRank,
		})
	}

	resp := gin.H{"default": whisper.DefaultConfig, "configs": views}
	if raw := c.Query("duration"); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil || seconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be a non-negative number of seconds"})
			return
		}
		priority, err := whisper.ParsePriority(c.Query("priority"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp["recommended"] = s.catalog.Recommend(time.Duration(seconds*float64(time.Second)), priority)
	}
	c.JSON(http.StatusOK, resp)
}

type analyzeRequest struct {
	Text              string               `json:"text"`
	Segments          []transcript.Segment `json:"segments"`
	ProcessingSeconds float64              `json:"processing_seconds"`
	EngineUsed        string               `json:"engine_used"`
}

type analyzeResponse struct {
	Metrics  quality.Metrics     `json:"quality_metrics"`
	Strategy correction.Strategy `json:"correction_strategy"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid transcript: %v", err)})
		return
	}
	if req.Text == "" {
		req.Text = transcript.JoinText(req.Segments)
	}
	elapsed := time.Duration(req.ProcessingSeconds * float64(time.Second))
	metrics := s.analyzer.Analyze(req.Text, req.Segments, elapsed, req.EngineUsed)
	c.JSON(http.StatusOK, analyzeResponse{Metrics: metrics, Strategy: correction.Select(metrics)})
}

// handleRun accepts a multipart upload with the audio in the "audio" field.
func (s *Server) handleRun(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	header, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"audio\" is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read upload: %v", err)})
		return
	}

	req, err := s.requestFromParams(c.PostForm, whisper.Audio{Data: data, Name: header.Filename})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RunTimeout)
	defer cancel()
	result := s.runner.Run(ctx, req)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	if strings.EqualFold(c.Query("format"), "srt") {
		c.Data(http.StatusOK, "application/x-subrip; charset=utf-8", []byte(result.SRT()))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) requestFromParams(get func(string) string, audio whisper.Audio) (pipeline.Request, error) {
	req := pipeline.Request{
		Audio:    audio,
		Config:   strings.TrimSpace(get("config")),
		Language: strings.TrimSpace(get("language")),
	}
	if req.Language == "" {
		req.Language = s.opts.Language
	}
	if req.Config != "" {
		if _, err := s.catalog.Resolve(req.Config); err != nil {
			return pipeline.Request{}, err
		}
	}
	if raw := strings.TrimSpace(get("target_quality")); raw != "" {
		target, err := strconv.ParseFloat(raw, 64)
		if err != nil || target <= 0 || target > 1 {
			return pipeline.Request{}, errors.New("target_quality must be a number in (0, 1]")
		}
		req.TargetQuality = target
	}
	if raw := strings.TrimSpace(get("skip_correction")); raw != "" {
		skip, err := strconv.ParseBool(raw)
		if err != nil {
			return pipeline.Request{}, errors.New("skip_correction must be a boolean")
		}
		req.SkipCorrection = skip
	}
	return req, nil
}
