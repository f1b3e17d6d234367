// Package files is the HTTP file transfer service: raw-body uploads, downloads
// by id and a liveness check. It shares nothing with the chat gateway except
// the URL scheme embedded in FILE messages.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/gin-gonic/gin"
)

// DefaultMaxUploadBytes is the upload limit when none is configured.
const DefaultMaxUploadBytes int64 = 50 << 20

const (
	filenameHeader  = "X-Filename"
	unknownFilename = "unknown_file"
	idTimeLayout    = "20060102150405"
	maxIDAttempts   = 1000
)

// UploadResponse is the JSON body of a successful upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type Service struct {
	store     BlobStore
	publicURL string
	maxBytes  int64
	logger    logging.Logger
	now       func() time.Time

	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewService builds the handlers. publicURL is the externally reachable base
// used to build download links.
func NewService(store BlobStore, publicURL string, maxBytes int64, logger logging.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Service{
		store:     store,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		logger:    logger.With("module", "file_service"),
		now:       time.Now,
		reserved:  map[string]struct{}{},
	}
}

// Router wires the routes onto a fresh gin engine.
func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.POST("/", s.Upload)
	r.GET(common.FilesRoutePrefix+":id", s.Download)
	r.GET("/ping", s.Ping)
	return r
}

func (s *Service) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		s.logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(started))
	}
}

func (s *Service) Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

// Upload stores the raw request body under a timestamped id derived from
// the X-Filename header.
func (s *Service) Upload(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Request.ContentLength > s.maxBytes {
		s.tooLarge(c)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.tooLarge(c)
			return
		}
		s.logger.Warn(ctx, "upload read failed", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Could not read upload"})
		return
	}

	name := SanitizeFilename(c.GetHeader(filenameHeader))

	id, err := s.reserve(ctx, name)
	if err != nil {
		s.logger.Error(ctx, "could not allocate file id", "filename", name, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Storage error"})
		return
	}
	defer s.release(id)

	if err := s.store.Put(ctx, id, body); err != nil {
		s.logger.Error(ctx, "could not store upload", "file_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Storage error"})
		return
	}

	s.logger.Info(ctx, "file uploaded", "file_id", id, "bytes", len(body))
	c.JSON(http.StatusOK, UploadResponse{
		Success:  true,
		FileID:   id,
		Filename: name,
		URL:      s.publicURL + common.FilesRoutePrefix + url.PathEscape(id),
	})
}

func (s *Service) tooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
		Error: fmt.Sprintf("%v (max %d MB)", common.ErrFileTooLarge, s.maxBytes>>20),
	})
}

// reserve picks an id that is neither stored nor being uploaded right now.
// A candidate is claimed before the store is asked about it, so the lookup
// runs without s.mu and concurrent uploads cannot pick the same id.
func (s *Service) reserve(ctx context.Context, name string) (string, error) {
	ts := s.now().Format(idTimeLayout)

	for n := 0; n < maxIDAttempts; n++ {
		id := ts + "_" + name
		if n > 0 {
			id = fmt.Sprintf("%s_%d_%s", ts, n, name)
		}
		if !s.claim(id) {
			continue
		}
		exists, err := s.store.Exists(ctx, id)
		if err != nil {
			s.release(id)
			return "", err
		}
		if exists {
			s.release(id)
			continue
		}
		return id, nil
	}
	return "", fmt.Errorf("no free id for %q: %w", name, common.ErrAlreadyExists)
}

func (s *Service) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.reserved[id]; busy {
		return false
	}
	s.reserved[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	delete(s.reserved, id)
	s.mu.Unlock()
}

// Download streams a stored file as an attachment.
func (s *Service) Download(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if !validID(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "File not found"})
		return
	}

	blob, err := s.store.Open(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "File not found"})
		return
	}
	if err != nil {
		s.logger.Error(ctx, "could not open file", "file_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Storage error"})
		return
	}
	defer blob.Body.Close()

	ctype := mime.TypeByExtension(filepath.Ext(id))
	if ctype == "" {
		ctype = "application/octet-stream"
	}

	c.DataFromReader(http.StatusOK, blob.Size, ctype, blob.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", id),
		"Last-Modified":       blob.ModTime.UTC().Format(http.TimeFormat),
	})
}

// SanitizeFilename reduces a client-supplied name to a safe base name.
// Percent-encoding is undone first; separators of either platform are
// stripped, and characters that would break the FILE message format are
// replaced.
func SanitizeFilename(raw string) string {
	if dec, err := url.PathUnescape(raw); err == nil {
		raw = dec
	}
	if i := strings.LastIndexAny(raw, `/\`); i >= 0 {
		raw = raw[i+1:]
	}
	raw = strings.Map(func(r rune) rune {
		if r == '|' || r < 0x20 || r == 0x7f {
			return '_'
		}
		return r
	}, strings.TrimSpace(raw))

	if raw == "" || raw == "." || raw == ".." {
		return unknownFilename
	}
	return raw
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && filepath.Base(id) == id
}
