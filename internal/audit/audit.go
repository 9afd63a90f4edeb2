package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/projectfiles/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultQueryLimit = 200
	MaxQueryLimit     = 1000
)

// Repository persists entries. It is satisfied by the database store and by
// the transaction-scoped store inside InTx.
type Repository interface {
	InsertAuditEntry(ctx context.Context, e *models.AuditLogEntry) error
	QueryAuditEntries(ctx context.Context, filter models.AuditFilter, limit int) ([]*models.AuditLogEntry, error)
}

// Record describes one action to be logged.
type Record struct {
	OperatorID string
	ProjectID  *int64
	ObjectType models.ObjectType
	ObjectID   string
	Action     models.Action
	Old        map[string]any
	New        map[string]any
	IPAddress  string
}

// NewEntry stamps a record with an id and creation time. Detail is attached
// only when at least one side of the diff is present.
func NewEntry(rec Record, now time.Time) (*models.AuditLogEntry, error) {
	if rec.ObjectType == "" || rec.ObjectID == "" || rec.Action == "" {
		return nil, fmt.Errorf("%w: audit entry needs object type, object id and action", models.ErrValidation)
	}

	e := &models.AuditLogEntry{
		ID:         uuid.NewString(),
		ProjectID:  rec.ProjectID,
		ObjectType: rec.ObjectType,
		ObjectID:   rec.ObjectID,
		Action:     rec.Action,
		CreatedAt:  now.UTC(),
	}
	if rec.OperatorID != "" {
		op := rec.OperatorID
		e.OperatorID = &op
	}
	if rec.IPAddress != "" {
		ip := rec.IPAddress
		e.IPAddress = &ip
	}

	if rec.Old != nil || rec.New != nil {
		d := &models.Diff{Old: rec.Old, New: rec.New}
		// reject values that cannot be stored as JSON before touching the database
		if _, err := json.Marshal(d); err != nil {
			return nil, fmt.Errorf("%w: audit detail: %v", models.ErrValidation, err)
		}
		e.Detail = d
	}
	return e, nil
}

// Log is the append-only operation log.
type Log struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Log)

func WithLogger(logger *zap.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func New(repo Repository, opts ...Option) *Log {
	l := &Log{
		repo:   repo,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends an entry through the log's own repository.
func (l *Log) Record(ctx context.Context, rec Record) (*models.AuditLogEntry, error) {
	return l.RecordWith(ctx, l.repo, rec)
}

// RecordWith appends an entry through repo, typically a transaction that
// also carries the mutation being logged.
func (l *Log) RecordWith(ctx context.Context, repo Repository, rec Record) (*models.AuditLogEntry, error) {
	e, err := NewEntry(rec, l.now())
	if err != nil {
		return nil, err
	}
	if err := repo.InsertAuditEntry(ctx, e); err != nil {
		l.logger.Error("failed to record audit entry",
			zap.String("object_type", string(e.ObjectType)),
			zap.String("object_id", e.ObjectID),
			zap.String("action", string(e.Action)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return e, nil
}

// Query returns matching entries newest first. limit <= 0 selects the
// default cap; anything above MaxQueryLimit is clamped.
func (l *Log) Query(ctx context.Context, filter models.AuditFilter, limit int) ([]*models.AuditLogEntry, error) {
	switch {
	case limit <= 0:
		limit = DefaultQueryLimit
	case limit > MaxQueryLimit:
		limit = MaxQueryLimit
	}

	entries, err := l.repo.QueryAuditEntries(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return entries, nil
}
