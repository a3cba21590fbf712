// =============================================================================
// Donation Importer - Import Session
// =============================================================================
//
// A Session walks one spreadsheet through the import steps:
//
//   upload --Load--> mapping --Proceed--> preview --Submit--> submitting
//                       ^                    |                  |      |
//                       +-------Back---------+    failure ------+      |
//                                            ^                         |
//                                            +-------------------------+
//   submitting --success--> done --> upload
//   any state --Reset--> upload
//
// CONCURRENCY:
//   All methods are safe for concurrent use. Decoding and submission run
//   without holding the session lock; each remembers the generation it
//   started in and discards its result when Reset or a newer Load moved the
//   generation on.
//
// =============================================================================

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/mapping"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/review"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/validation"
)

// Default operation timeouts.
const (
	DefaultDecodeTimeout = 30 * time.Second
	DefaultSubmitTimeout = 30 * time.Second
)

// Decoder reads an uploaded file into a RawTable.
type Decoder interface {
	Decode(ctx context.Context, name string, data []byte) (*types.RawTable, error)
}

// Submitter hands a batch to the donations service. requestID identifies
// the session on the wire.
type Submitter interface {
	Submit(ctx context.Context, requestID string, batch types.ImportBatch) (*types.Receipt, error)
}

// Session is one import, from file upload to submission.
type Session struct {
	id        string
	decoder   Decoder
	submitter Submitter

	schema        mapping.Schema
	transformer   *Transformer
	decodeTimeout time.Duration
	submitTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	table      *types.RawTable
	mapping    *mapping.ColumnMapping
	batch      review.Batch
	skipped    []*validation.ValidationError
	lastErr    error
	receipt    *types.Receipt
	lastActive time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSchema sets the record schema. The default is the donor schema.
func WithSchema(schema mapping.Schema) Option {
	return func(s *Session) { s.schema = schema }
}

// WithTransformer sets the row transformer.
func WithTransformer(t *Transformer) Option {
	return func(s *Session) {
		if t != nil {
			s.transformer = t
		}
	}
}

// WithTimeouts sets the decode and submission timeouts. Zero keeps the
// default.
func WithTimeouts(decode, submit time.Duration) Option {
	return func(s *Session) {
		if decode > 0 {
			s.decodeTimeout = decode
		}
		if submit > 0 {
			s.submitTimeout = submit
		}
	}
}

// WithClock sets the time source used for activity tracking.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSession returns a session in the upload state.
func NewSession(decoder Decoder, submitter Submitter, opts ...Option) *Session {
	s := &Session{
		id:            uuid.NewString(),
		decoder:       decoder,
		submitter:     submitter,
		schema:        mapping.DonorSchema(),
		decodeTimeout: DefaultDecodeTimeout,
		submitTimeout: DefaultSubmitTimeout,
		logger:        zap.NewNop(),
		now:           time.Now,
		state:         StateUpload,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transformer == nil {
		s.transformer = NewTransformer(ModeStrict, true, s.logger)
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	s.lastActive = s.now()
	return s
}

// ID returns the session's UUID.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive returns the time of the last operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// =============================================================================
// UPLOAD
// =============================================================================

type decodeResult struct {
	table *types.RawTable
	err   error
}

// Load decodes a file and moves to the mapping step with a suggested
// mapping. On failure the state is unchanged and the error is kept for View.
func (s *Session) Load(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	if err := s.checkLocked(opLoad); err != nil {
		s.mu.Unlock()
		return err
	}
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	s.logger.Info("decoding file", zap.String("file", name), zap.Int("bytes", len(data)))

	ctx, cancel := context.WithTimeout(ctx, s.decodeTimeout)
	defer cancel()

	done := make(chan decodeResult, 1)
	go func() {
		table, err := s.decoder.Decode(ctx, name, data)
		done <- decodeResult{table: table, err: err}
	}()

	var res decodeResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = apperrors.Decode(ctx.Err(), "reading the file took too long")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Debug("discarding stale decode", zap.String("file", name))
		return apperrors.ErrStale
	}
	s.touchLocked()

	if res.err != nil {
		s.lastErr = res.err
		s.logger.Warn("decode failed", zap.String("file", name), zap.Error(res.err))
		return res.err
	}

	s.table = res.table
	s.mapping = mapping.New(s.schema, res.table.Headers)
	suggested := s.mapping.Suggest()
	s.batch = review.Batch{}
	s.skipped = nil
	s.receipt = nil
	s.lastErr = nil
	s.state = StateMapping

	s.logger.Info("file loaded",
		zap.String("file", res.table.Source),
		zap.Int("rows", len(res.table.Rows)),
		zap.Int("suggested", len(suggested)),
	)
	return nil
}

// =============================================================================
// MAPPING
// =============================================================================

// SetMapping assigns header to field. An empty header unsets the field.
func (s *Session) SetMapping(field types.Field, header string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(opSetMapping); err != nil {
		return err
	}
	s.touchLocked()
	return s.keepLocked(s.mapping.Set(field, header))
}

// Proceed transforms the rows and moves to the preview step. It stays in
// mapping, keeping the error, when a required field is unmapped or a row
// fails.
func (s *Session) Proceed() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(opProceed); err != nil {
		return err
	}
	s.touchLocked()

	if !s.mapping.IsComplete() {
		return s.keepLocked(MissingFieldsError(s.mapping.Missing()))
	}

	result, err := s.transformer.Transform(s.table, s.mapping)
	if err != nil {
		s.logger.Info("transform rejected", zap.Error(err))
		return s.keepLocked(err)
	}

	s.batch = review.NewBatch(result.Records)
	s.skipped = result.Skipped
	s.lastErr = nil
	s.state = StatePreview

	fields := []zap.Field{zap.Int("records", s.batch.Len())}
	if len(result.Skipped) > 0 {
		fields = append(fields, zap.Strings("skipped", describeSkipped(result.Skipped)))
	}
	s.logger.Info("preview ready", fields...)
	return nil
}

// Back returns from the preview to the mapping step. The mapping is kept;
// the reviewed batch is discarded.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(opBack); err != nil {
		return err
	}
	s.touchLocked()
	s.batch = review.Batch{}
	s.skipped = nil
	s.lastErr = nil
	s.state = StateMapping
	return nil
}

// =============================================================================
// REVIEW
// =============================================================================

// EditField replaces one field of the record at index.
func (s *Session) EditField(index int, field types.Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(opEdit); err != nil {
		return err
	}
	s.touchLocked()

	batch, err := s.batch.Edit(index, field, value)
	if err != nil {
		return s.keepLocked(err)
	}
	s.batch = batch
	s.lastErr = nil
	return nil
}

// RemoveRecord deletes the record at index.
func (s *Session) RemoveRecord(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLocked(opRemove); err != nil {
		return err
	}
	s.touchLocked()

	batch, err := s.batch.Remove(index)
	if err != nil {
		return s.keepLocked(err)
	}
	s.batch = batch
	s.lastErr = nil
	return nil
}

// =============================================================================
// SUBMISSION
// =============================================================================

// Submit sends the batch to the donations service.
//
// On success the session passes through done and is reset to upload; the
// receipt stays visible in View until the next Load or Reset. On failure
// the session returns to preview with the batch intact so the user can
// retry.
func (s *Session) Submit(ctx context.Context) (*types.Receipt, error) {
	s.mu.Lock()
	if err := s.checkLocked(opSubmit); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.touchLocked()
	if s.batch.Len() == 0 {
		err := s.keepLocked(apperrors.EmptyBatch())
		s.mu.Unlock()
		return nil, err
	}
	s.state = StateSubmitting
	gen := s.generation
	records := s.batch.Records()
	s.mu.Unlock()

	s.logger.Info("submitting batch", zap.Int("records", len(records)))

	ctx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	defer cancel()
	receipt, err := s.submitter.Submit(ctx, s.id, records)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != gen {
		s.logger.Debug("discarding stale submission")
		return nil, apperrors.ErrStale
	}
	s.touchLocked()

	if err != nil {
		s.state = StatePreview
		s.lastErr = err
		s.logger.Warn("submission failed", zap.Error(err))
		return nil, err
	}

	s.state = StateDone
	s.logger.Info("batch accepted", zap.Int("records", receipt.Count), zap.String("message", receipt.Message))
	s.resetLocked()
	s.receipt = receipt
	return receipt, nil
}

// =============================================================================
// RESET
// =============================================================================

// Reset discards everything and returns to the upload step. Decodes and
// submissions still in flight are discarded when they finish.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.resetLocked()
}

// Close is Reset; it ends the session from any state.
func (s *Session) Close() {
	s.Reset()
}

func (s *Session) resetLocked() {
	s.generation++
	s.state = StateUpload
	s.table = nil
	s.mapping = nil
	s.batch = review.Batch{}
	s.skipped = nil
	s.lastErr = nil
	s.receipt = nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Rejected transitions are returned to the caller only; the last error
// keeps describing the session's own work.
func (s *Session) checkLocked(op operation) error {
	if !s.state.allows(op) {
		return apperrors.InvalidState(string(op), string(s.state))
	}
	return nil
}

// keepLocked records err as the session's last error and returns it.
func (s *Session) keepLocked(err error) error {
	s.lastErr = err
	return err
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}
