package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

var (
	adminClaims      = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	supervisorClaims = &models.JWTClaims{UserID: "sup-1", Role: models.RoleSupervisor}
	apprenticeClaims = &models.JWTClaims{UserID: "appr-1", Role: models.RoleApprentice}
)

func defaultRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	reg, err := rules.Default()
	require.NoError(t, err)
	return reg
}

// hundredHourRegistry holds a small "TS" program: 100 hours, 50 transferable.
func hundredHourRegistry(t *testing.T) *rules.Registry {
	t.Helper()
	reg, err := rules.NewRegistry(models.JurisdictionRules{
		RuleSetID:            "TS-2025-v1",
		JurisdictionCode:     "TS",
		Name:                 "Test State",
		Version:              1,
		EffectiveDate:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		RequiredTotalHours:   100,
		MaxTransferHours:     50,
		AcceptedSourceTypes:  models.SourceTypes,
		ExamRequired:         true,
		ExamEligibilityHours: 100,
		CategoryRequirements: map[string]models.CategoryRequirement{
			"RTI": {MinHours: 20},
			"OJT": {MinHours: 60},
		},
	})
	require.NoError(t, err)
	return reg
}

type enrollmentStoreStub struct {
	enrollments map[string]models.ApprenticeEnrollment
	sites       map[string]models.PartnerSite
	err         error
}

func newEnrollmentStore(enrollments ...models.ApprenticeEnrollment) *enrollmentStoreStub {
	s := &enrollmentStoreStub{
		enrollments: make(map[string]models.ApprenticeEnrollment),
		sites:       make(map[string]models.PartnerSite),
	}
	for _, e := range enrollments {
		s.enrollments[e.ID] = e
	}
	return s
}

func (s *enrollmentStoreStub) FindByID(ctx context.Context, id string) (*models.ApprenticeEnrollment, error) {
	if s.err != nil {
		return nil, s.err
	}
	e, ok := s.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s *enrollmentStoreStub) FindActiveByApprentice(ctx context.Context, apprenticeID string) (*models.ApprenticeEnrollment, error) {
	for _, e := range s.enrollments {
		if e.ApprenticeID == apprenticeID && e.Status == models.EnrollmentStatusActive {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentStoreStub) Create(ctx context.Context, e *models.ApprenticeEnrollment) error {
	if e.ID == "" {
		e.ID = "enr-new"
	}
	s.enrollments[e.ID] = *e
	return nil
}

func (s *enrollmentStoreStub) FindSite(ctx context.Context, id string) (*models.PartnerSite, error) {
	site, ok := s.sites[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &site, nil
}

func (s *enrollmentStoreStub) CreateSite(ctx context.Context, site *models.PartnerSite) error {
	if site.ID == "" {
		site.ID = "site-new"
	}
	s.sites[site.ID] = *site
	return nil
}

type auditSpy struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (a *auditSpy) Record(ctx context.Context, entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
}

func (a *auditSpy) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

// memCache stores JSON payloads in memory.
type memCache struct {
	mu      sync.Mutex
	items   map[string][]byte
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{items: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = raw
	return nil
}

func (c *memCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

func strPtr(s string) *string { return &s }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
