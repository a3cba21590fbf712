// =============================================================================
// Donation Importer - HTTP Session API
// =============================================================================
//
// The API drives import sessions over HTTP, one request per user action:
//
//   GET    /health                          liveness
//   POST   /api/imports                     open a session
//   GET    /api/imports/:id                 session view
//   POST   /api/imports/:id/file            multipart "file" upload
//   PUT    /api/imports/:id/mapping         {"field": ..., "header": ...}
//   POST   /api/imports/:id/proceed         mapping -> preview
//   POST   /api/imports/:id/back            preview -> mapping
//   PATCH  /api/imports/:id/records/:index  {"field": ..., "value": ...}
//   DELETE /api/imports/:id/records/:index  remove one record
//   POST   /api/imports/:id/submit          send the batch
//   DELETE /api/imports/:id                 close the session
//
// Errors are answered as {"error": message, "code": CODE}.
//
// =============================================================================

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/decoder"
	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

// Server serves the session API.
type Server struct {
	store         *Store
	maxUploadSize int64
	logger        *zap.Logger
}

// New returns a Server over store. Uploads larger than maxUploadSize are
// refused before they reach the decoder.
func New(store *Store, maxUploadSize int64, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadSize <= 0 {
		maxUploadSize = decoder.DefaultMaxFileSize
	}
	return &Server{store: store, maxUploadSize: maxUploadSize, logger: logger}
}

// Handler builds the gin engine with all routes.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.store.Len()})
	})

	imports := r.Group("/api/imports")
	{
		imports.POST("", s.handleCreate)
		imports.GET("/:id", s.withSession(s.handleView))
		imports.DELETE("/:id", s.handleClose)
		imports.POST("/:id/file", s.withSession(s.handleUpload))
		imports.PUT("/:id/mapping", s.withSession(s.handleMapping))
		imports.POST("/:id/proceed", s.withSession(s.handleProceed))
		imports.POST("/:id/back", s.withSession(s.handleBack))
		imports.PATCH("/:id/records/:index", s.withSession(s.handleEdit))
		imports.DELETE("/:id/records/:index", s.withSession(s.handleRemove))
		imports.POST("/:id/submit", s.withSession(s.handleSubmit))
	}

	return r
}

// ListenAndServe serves on addr until ctx is done, sweeping idle sessions
// in the background.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go s.store.RunJanitor(janitorCtx, time.Minute)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("session API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

// =============================================================================
// HANDLERS
// =============================================================================

type sessionHandler func(c *gin.Context, sess *pipeline.Session)

func (s *Server) withSession(h sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := s.store.Get(c.Param("id"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "import session not found", "code": "NOT_FOUND"})
			return
		}
		h(c, sess)
	}
}

func (s *Server) handleCreate(c *gin.Context) {
	sess := s.store.Create()
	c.JSON(http.StatusCreated, sess.View())
}

func (s *Server) handleView(c *gin.Context, sess *pipeline.Session) {
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleClose(c *gin.Context) {
	if !s.store.Delete(c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "import session not found", "code": "NOT_FOUND"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpload(c *gin.Context, sess *pipeline.Session) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		abort(c, apperrors.InvalidInput("a file is required in the \"file\" field"))
		return
	}
	if fileHeader.Size > s.maxUploadSize {
		abort(c, apperrors.Decode(nil, "file is larger than the %d MB limit", s.maxUploadSize>>20))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		abort(c, apperrors.Decode(err, "the uploaded file could not be read"))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		abort(c, apperrors.Decode(err, "the uploaded file could not be read"))
		return
	}

	if err := sess.Load(c.Request.Context(), fileHeader.Filename, data); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

type mappingRequest struct {
	Field  string `json:"field" binding:"required"`
	Header string `json:"header"`
}

func (s *Server) handleMapping(c *gin.Context, sess *pipeline.Session) {
	var req mappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, apperrors.InvalidInput("invalid mapping request: %v", err))
		return
	}
	field, ok := types.ParseField(req.Field)
	if !ok {
		abort(c, apperrors.InvalidInput("unknown field %q", req.Field))
		return
	}
	if err := sess.SetMapping(field, req.Header); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleProceed(c *gin.Context, sess *pipeline.Session) {
	if err := sess.Proceed(); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleBack(c *gin.Context, sess *pipeline.Session) {
	if err := sess.Back(); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

type editRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

func (s *Server) handleEdit(c *gin.Context, sess *pipeline.Session) {
	index, err := recordIndex(c)
	if err != nil {
		abort(c, err)
		return
	}
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, apperrors.InvalidInput("invalid edit request: %v", err))
		return
	}
	field, ok := types.ParseField(req.Field)
	if !ok {
		abort(c, apperrors.InvalidInput("unknown field %q", req.Field))
		return
	}
	if err := sess.EditField(index, field, req.Value); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleRemove(c *gin.Context, sess *pipeline.Session) {
	index, err := recordIndex(c)
	if err != nil {
		abort(c, err)
		return
	}
	if err := sess.RemoveRecord(index); err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.View())
}

func (s *Server) handleSubmit(c *gin.Context, sess *pipeline.Session) {
	receipt, err := sess.Submit(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"receipt": receipt, "session": sess.View()})
}

func recordIndex(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, apperrors.InvalidInput("record index %q is not a number", c.Param("index"))
	}
	return index, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// abort answers with the status for err's code.
func abort(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	c.AbortWithStatusJSON(statusFor(code), gin.H{"error": apperrors.Message(err), "code": code})
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeDecode, apperrors.CodeEmptyData, apperrors.CodeInvalidInput, apperrors.CodeEmptyBatch:
		return http.StatusBadRequest
	case apperrors.CodeInvalidState, apperrors.CodeStale:
		return http.StatusConflict
	case apperrors.CodeValidation:
		return http.StatusUnprocessableEntity
	case apperrors.CodeSubmission:
		return http.StatusBadGateway
	case apperrors.CodeNetwork:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
