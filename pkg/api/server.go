// Package api provides the REST API server for audio2midi
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/james-see/audio2midi/pkg/config"
	"github.com/james-see/audio2midi/pkg/converter"
	"github.com/james-see/audio2midi/pkg/converter/decoders"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title Audio2MIDI API
// @version 1.0
// @description API for converting recorded audio into single-track MIDI files
// @host localhost:8080
// @BasePath /api/v1

// Server serves conversion requests
type Server struct {
	cfg     config.Config
	log     *zap.Logger
	decoder converter.Decoder
}

// NewServer creates a server. A nil decoder selects the content-sniffing
// decoder with the configured ffmpeg binary.
func NewServer(cfg config.Config, logger *zap.Logger, decoder converter.Decoder) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if decoder == nil {
		decoder = decoders.NewAuto(cfg.FFmpegPath)
	}
	return &Server{cfg: cfg, log: logger, decoder: decoder}
}

// Router builds the gin engine with all routes
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/formats", listFormats)
		v1.POST("/convert", s.handleConvert)
		v1.POST("/inspect", s.handleInspect)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the configured port
func StartServer(cfg config.Config, logger *zap.Logger) error {
	s := NewServer(cfg, logger, nil)
	s.log.Info("starting API server", zap.Int("port", cfg.Port))
	return s.Router().Run(fmt.Sprintf(":%d", cfg.Port))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition, X-Conversion-ID, X-Fallback-Used, X-Fallback-Reason")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "audio2midi",
	})
}

// listFormats godoc
// @Summary List accepted input formats
// @Description Returns the audio extensions accepted for conversion and the output type
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"extensions": converter.AudioExtensions,
		"mime":       "audio/*",
		"output":     converter.MIDIMimeType,
	})
}

// handleConvert godoc
// @Summary Convert audio to MIDI
// @Description Upload an audio file and receive a single-track MIDI file. Undecodable audio still yields a MIDI file built from fallback notes, flagged by X-Fallback-Used.
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "Audio file to convert (.mp3, .wav, .m4a, .aac)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 415 {object} map[string]string
// @Router /api/v1/convert [post]
func (s *Server) handleConvert(c *gin.Context) {
	up, ok := s.readUpload(c)
	if !ok {
		return
	}

	if !converter.IsAudioFile(up.filename, up.contentType) && !converter.IsAudioFile(up.filename, decoders.DetectMIME(up.data)) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Not an audio file"})
		return
	}

	conv := converter.New(append(s.cfg.ConverterOptions(),
		converter.WithDecoder(s.decoder),
		converter.WithLogger(s.log),
	)...)

	result, err := conv.Convert(c.Request.Context(), up.data, up.filename)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", result.Artifact.Filename))
	c.Header("X-Conversion-ID", result.ID)
	c.Header("X-Fallback-Used", strconv.FormatBool(result.UsedFallback))
	if result.UsedFallback {
		c.Header("X-Fallback-Reason", result.Reason.String())
	}
	c.Data(http.StatusOK, result.Artifact.MIMEType, result.Artifact.Data)
}

// handleInspect godoc
// @Summary Inspect a MIDI file
// @Description Upload a MIDI file and receive its note events
// @Tags info
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file to inspect"
// @Success 200 {object} converter.MIDIInfo
// @Failure 400 {object} map[string]string
// @Router /api/v1/inspect [post]
func (s *Server) handleInspect(c *gin.Context) {
	up, ok := s.readUpload(c)
	if !ok {
		return
	}

	info, err := converter.Inspect(up.data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"format":     info.Format,
		"tracks":     info.Tracks,
		"resolution": info.Resolution,
		"pitches":    info.Pitches(),
		"events":     info.Events,
	})
}

type upload struct {
	data        []byte
	filename    string
	contentType string
}

func (s *Server) readUpload(c *gin.Context) (*upload, bool) {
	if s.cfg.MaxUploadSize > 0 {
		if c.Request.ContentLength > s.cfg.MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return nil, false
		}
		// Limit upload size before the multipart form is parsed
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadSize)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, false
	}
	defer func() { _ = file.Close() }()

	if s.cfg.MaxUploadSize > 0 && header.Size > s.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, false
	}

	return &upload{
		data:        data,
		filename:    header.Filename,
		contentType: strings.TrimSpace(header.Header.Get("Content-Type")),
	}, true
}
