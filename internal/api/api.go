package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/config"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/dispatcher"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/render"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/scan"
	"github.com/aiforce-discovery-agent/collectors/scan-console/internal/session"
)

// Server represents the HTTP console server.
type Server struct {
	config     config.ServerConfig
	controller *session.Controller
	logger     *zap.SugaredLogger
	router     *gin.Engine
}

// New creates a new console server.
func New(cfg config.ServerConfig, ctrl *session.Controller, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config:     cfg,
		controller: ctrl,
		logger:     logger,
		router:     gin.New(),
	}

	s.setupRoutes()
	return s
}

// Router returns the gin router.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.GET("/health", s.healthHandler)
	s.router.GET("/ready", s.readyHandler)

	// Console
	s.router.GET("/", s.pageHandler)
	s.router.POST("/select/file", s.selectFileHandler)
	s.router.POST("/scan/file", s.scanFileHandler)
	s.router.POST("/scan/text", s.scanTextHandler)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/state", s.stateHandler)
		v1.GET("/results", s.resultsHandler)
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		s.logger.Debugw("Request completed",
			"path", path,
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"latency", time.Since(start),
		)
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "scan-console",
	})
}

func (s *Server) readyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "scan-console",
	})
}

func (s *Server) pageHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := writePage(c.Writer, s.controller); err != nil {
		s.logger.Errorw("Failed to render page", "error", err)
	}
}

// selectFileHandler replaces the file selection. A request without a file
// clears it.
func (s *Server) selectFileHandler(c *gin.Context) {
	f, ok := s.readUpload(c)
	if !ok {
		return
	}

	if _, err := s.controller.Handle(c.Request.Context(), session.SelectFileCommand{File: f}); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	if !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	snap := s.controller.Snapshot()
	c.JSON(http.StatusOK, SelectionResponse{
		Selected:   f != nil,
		Display:    snap.SelectedFile,
		Affordance: snap.Affordances[0],
	})
}

// scanFileHandler scans an uploaded file, or the current selection when the
// request carries none.
func (s *Server) scanFileHandler(c *gin.Context) {
	f, ok := s.readUpload(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if f != nil {
		if _, err := s.controller.Handle(ctx, session.SelectFileCommand{File: f}); err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
	}

	s.runScan(ctx, c, scan.KindFile, session.ScanFileCommand{})
}

func (s *Server) scanTextHandler(c *gin.Context) {
	if !s.limitBody(c) {
		return
	}

	var req TextScanRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, err)
			return
		}
		s.fail(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := s.controller.Handle(ctx, session.EnterTextCommand{Text: req.Text}); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	s.runScan(ctx, c, scan.KindText, session.ScanTextCommand{})
}

func (s *Server) runScan(ctx context.Context, c *gin.Context, kind scan.Kind, cmd session.Command) {
	out, err := s.controller.Handle(ctx, cmd)
	if err != nil {
		if errors.Is(err, dispatcher.ErrBusy) {
			s.fail(c, http.StatusConflict, err)
			return
		}
		s.fail(c, http.StatusInternalServerError, err)
		return
	}

	if !wantsJSON(c) {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	c.JSON(http.StatusOK, ScanResponse{
		Kind:    kind,
		Outcome: *out,
		Results: render.Build(*out),
	})
}

func (s *Server) stateHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) resultsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Results().View())
}

// readUpload reads the optional multipart "file" field. It writes the error
// response itself and returns false when the request cannot be used.
func (s *Server) readUpload(c *gin.Context) (*scan.File, bool) {
	if !s.limitBody(c) {
		return nil, false
	}

	header, err := c.FormFile("file")
	switch {
	case err == nil:
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return nil, true
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.fail(c, http.StatusRequestEntityTooLarge, err)
			return nil, false
		}
		s.fail(c, http.StatusBadRequest, err)
		return nil, false
	}

	src, err := header.Open()
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return nil, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return nil, false
	}

	return &scan.File{Name: header.Filename, Data: data}, true
}

// limitBody caps the request body at the configured upload size. Requests
// that announce a larger body are refused before it is read.
func (s *Server) limitBody(c *gin.Context) bool {
	if c.Request.ContentLength > s.config.MaxUploadBytes {
		s.fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("request body of %d bytes exceeds the %d byte limit",
			c.Request.ContentLength, s.config.MaxUploadBytes))
		return false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxUploadBytes)
	return true
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	s.logger.Warnw("Request refused",
		"path", c.Request.URL.Path,
		"status", status,
		"error", err,
	)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}
