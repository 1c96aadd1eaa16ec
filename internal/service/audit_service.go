package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/pkg/jobs"
)

const auditJobType = "audit_log"

type requestInfoKey struct{}

type requestInfo struct {
	ip        string
	userAgent string
}

// WithRequestInfo attaches the caller's address and user agent to ctx.
func WithRequestInfo(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{ip: ip, userAgent: userAgent})
}

// RequestInfoFrom returns what WithRequestInfo stored, or empty strings.
func RequestInfoFrom(ctx context.Context) (ip, userAgent string) {
	if ctx == nil {
		return "", ""
	}
	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	return info.ip, info.userAgent
}

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// auditRecorder is what decision paths depend on.
type auditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry describes one audit event before serialisation.
type AuditEntry struct {
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	OldValues  interface{}
	NewValues  interface{}
	IPAddress  string
	UserAgent  string
}

// AuditService appends audit records through a background queue. Recording
// never blocks or fails the caller; failures are logged and counted.
type AuditService struct {
	store   auditStore
	queue   jobDispatcher
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditService constructs the service. Without a queue records are written inline.
func NewAuditService(store auditStore, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		store:   store,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// AttachQueue routes records through the given dispatcher.
func (s *AuditService) AttachQueue(queue jobDispatcher) {
	s.queue = queue
}

// Record builds an audit log and hands it to the queue.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	if s == nil || s.store == nil {
		return
	}
	ip, ua := RequestInfoFrom(ctx)
	if ip != "" {
		entry.IPAddress = ip
	}
	if ua != "" {
		entry.UserAgent = ua
	}
	log, err := s.build(entry)
	if err != nil {
		s.logger.Warn("failed to encode audit record", zap.String("action", entry.Action), zap.Error(err))
		s.metrics.RecordAuditFailure("encode")
		return
	}

	if s.queue == nil {
		if err := s.store.Create(ctx, log); err != nil {
			s.logger.Warn("failed to write audit record", zap.String("action", log.Action), zap.Error(err))
			s.metrics.RecordAuditFailure("persist")
		}
		return
	}

	job := jobs.Job{ID: log.ID, Type: auditJobType, Payload: log}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue audit record", zap.String("action", log.Action), zap.Error(err))
		s.metrics.RecordAuditFailure("enqueue")
	}
}

// Handle persists a queued audit record.
func (s *AuditService) Handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok || log == nil {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return s.store.Create(ctx, log)
}

// OnDrop is invoked by the queue once a record exhausts its retries.
func (s *AuditService) OnDrop(job jobs.Job, err error) {
	s.logger.Error("audit record dropped", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
	s.metrics.RecordAuditFailure("persist")
}

func (s *AuditService) build(entry AuditEntry) (*models.AuditLog, error) {
	log := &models.AuditLog{
		ID:        uuid.NewString(),
		Action:    entry.Action,
		Resource:  entry.Resource,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		CreatedAt: s.now(),
	}
	if log.IPAddress == "" {
		log.IPAddress = "system"
	}
	actor := entry.ActorID
	if actor == "" {
		actor = models.SystemActor
	}
	log.UserID = &actor
	if entry.ResourceID != "" {
		id := entry.ResourceID
		log.ResourceID = &id
	}
	var err error
	if log.OldValues, err = encodeAuditValues(entry.OldValues); err != nil {
		return nil, err
	}
	if log.NewValues, err = encodeAuditValues(entry.NewValues); err != nil {
		return nil, err
	}
	return log, nil
}

func encodeAuditValues(v interface{}) (*string, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := string(raw)
	return &out, nil
}
