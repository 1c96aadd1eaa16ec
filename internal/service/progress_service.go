package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

var milestonePercents = []int{25, 50, 75, 100}

type progressEntryReader interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.HourEntry, error)
}

type transferTotals interface {
	AcceptedHours(ctx context.Context, enrollmentID string) (float64, error)
	HasPendingReview(ctx context.Context, enrollmentID string) (bool, error)
}

// ProgressService derives progress summaries from the hour ledger.
type ProgressService struct {
	registry    rules.Lookup
	enrollments enrollmentReader
	entries     progressEntryReader
	transfers   transferTotals
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewProgressService constructs ProgressService.
func NewProgressService(registry rules.Lookup, enrollments enrollmentReader, entries progressEntryReader, transfers transferTotals, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		registry:    registry,
		enrollments: enrollments,
		entries:     entries,
		transfers:   transfers,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the enrollment's progress and whether it came from cache.
func (s *ProgressService) Summary(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.ApprenticeProgressSummary, bool, error) {
	enrollment, err := loadEnrollment(ctx, s.enrollments, enrollmentID, actor)
	if err != nil {
		return nil, false, err
	}

	key := ProgressKey(enrollment.ID)
	var cached models.ApprenticeProgressSummary
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}
	gen := s.cache.Generation(key)

	start := time.Now()
	entries, transfer, hasReview, err := s.load(ctx, enrollment.ID)
	if err != nil {
		return nil, false, err
	}

	summary, err := AggregateProgress(s.registry, *enrollment, entries, transfer, hasReview, s.now())
	if err != nil {
		return nil, false, err
	}
	s.metrics.ObserveProgressSummary(time.Since(start))
	if s.cache.Enabled() && !s.cache.SetIfCurrent(ctx, key, gen, summary, 0) {
		s.logger.Debug("progress summary not cached; ledger changed during compute", zap.String("enrollment_id", enrollment.ID))
	}
	return summary, false, nil
}

// Standing reads the enrollment's unrounded effective total. It never uses the
// cache, so decisions made on it see every committed ledger write.
func (s *ProgressService) Standing(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.LedgerStanding, error) {
	enrollment, err := loadEnrollment(ctx, s.enrollments, enrollmentID, actor)
	if err != nil {
		return nil, err
	}
	entries, transfer, hasReview, err := s.load(ctx, enrollment.ID)
	if err != nil {
		return nil, err
	}
	var verified float64
	for _, e := range countedEntries(entries) {
		if e.Verified {
			verified += e.Hours
		}
	}
	return &models.LedgerStanding{
		EnrollmentID:      enrollment.ID,
		JurisdictionCode:  enrollment.JurisdictionCode,
		EffectiveHours:    verified + math.Max(0, transfer),
		HasPendingReviews: hasReview,
	}, nil
}

func (s *ProgressService) load(ctx context.Context, enrollmentID string) ([]models.HourEntry, float64, bool, error) {
	var (
		entries   []models.HourEntry
		transfer  float64
		hasReview bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.entries.ListByEnrollment(gctx, enrollmentID)
		return err
	})
	g.Go(func() error {
		var err error
		transfer, err = s.transfers.AcceptedHours(gctx, enrollmentID)
		return err
	})
	g.Go(func() error {
		var err error
		hasReview, err = s.transfers.HasPendingReview(gctx, enrollmentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress data")
	}
	return entries, transfer, hasReview, nil
}

// countedEntries drops entries replaced by a correction and non-positive ones.
func countedEntries(entries []models.HourEntry) []models.HourEntry {
	superseded := make(map[string]struct{})
	for _, e := range entries {
		if e.SupersedesID != nil {
			superseded[*e.SupersedesID] = struct{}{}
		}
	}
	out := make([]models.HourEntry, 0, len(entries))
	for _, e := range entries {
		if _, gone := superseded[e.ID]; gone || e.Hours <= 0 {
			continue
		}
		out = append(out, e)
	}
	return out
}

// AggregateProgress computes a summary from a snapshot of entries. Entries
// replaced by a correction are ignored.
func AggregateProgress(
	registry rules.Lookup,
	enrollment models.ApprenticeEnrollment,
	entries []models.HourEntry,
	transferHours float64,
	hasPendingReviews bool,
	now time.Time,
) (*models.ApprenticeProgressSummary, error) {
	var current models.JurisdictionRules
	ok := false
	if registry != nil {
		current, ok = registry.Get(enrollment.JurisdictionCode)
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrRulesNotFound, fmt.Sprintf("rules not found for jurisdiction %s", enrollment.JurisdictionCode))
	}

	byCategory := map[models.HourCategory]*models.CategoryProgress{
		models.CategoryRTI: {Category: models.CategoryRTI},
		models.CategoryOJT: {Category: models.CategoryOJT},
	}
	var verified, pending float64
	counted := make([]models.HourEntry, 0, len(entries))
	for _, e := range countedEntries(entries) {
		cat, known := byCategory[e.Category]
		if !known {
			cat = &models.CategoryProgress{Category: e.Category}
			byCategory[e.Category] = cat
		}
		if e.Verified {
			verified += e.Hours
			cat.VerifiedHours += e.Hours
			counted = append(counted, e)
		} else {
			pending += e.Hours
			cat.PendingHours += e.Hours
		}
	}

	transferHours = math.Max(0, transferHours)
	effective := verified + transferHours
	required := float64(current.RequiredTotalHours)
	eligibility := rules.CheckExamEligibility(registry, enrollment.JurisdictionCode, effective, hasPendingReviews)

	summary := &models.ApprenticeProgressSummary{
		EnrollmentID:        enrollment.ID,
		JurisdictionCode:    enrollment.JurisdictionCode,
		RuleSetID:           current.RuleSetID,
		VerifiedTotalHours:  rules.Round2(verified),
		PendingTotalHours:   rules.Round2(pending),
		TransferHours:       rules.Round2(transferHours),
		EffectiveTotalHours: rules.Round2(effective),
		RequiredHours:       current.RequiredTotalHours,
		RemainingHours:      rules.Round2(math.Max(0, required-effective)),
		ProgressPercentage:  rules.Percentage(effective, required),
		ReadyForExam:        eligibility.Eligible,
		ExamReason:          eligibility.Reason,
		HasPendingReviews:   hasPendingReviews,
		GeneratedAt:         now,
	}
	summary.CategoryBreakdown = categoryBreakdown(byCategory, current.CategoryRequirements)
	summary.Milestones = milestones(counted, transferHours, effective, required)
	summary.WeeklyHours = weeklyHours(counted)

	weekly := make([]float64, len(summary.WeeklyHours))
	for i, w := range summary.WeeklyHours {
		weekly[i] = w.Hours
	}
	if avg, err := stats.Mean(weekly); err == nil {
		summary.AverageWeeklyHours = rules.Round2(avg)
	}
	switch {
	case summary.RemainingHours == 0:
		zero := 0.0
		summary.ProjectedWeeksRemaining = &zero
	case summary.AverageWeeklyHours > 0:
		weeks := rules.Round2(summary.RemainingHours / summary.AverageWeeklyHours)
		summary.ProjectedWeeksRemaining = &weeks
	}
	return summary, nil
}

func categoryBreakdown(byCategory map[models.HourCategory]*models.CategoryProgress, reqs map[string]models.CategoryRequirement) []models.CategoryProgress {
	names := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		names = append(names, string(cat))
	}
	sort.Strings(names)
	out := make([]models.CategoryProgress, 0, len(names))
	for _, name := range names {
		cat := *byCategory[models.HourCategory(name)]
		cat.MinHours = reqs[name].MinHours
		cat.Met = cat.VerifiedHours >= float64(cat.MinHours)
		cat.VerifiedHours = rules.Round2(cat.VerifiedHours)
		cat.PendingHours = rules.Round2(cat.PendingHours)
		out = append(out, cat)
	}
	return out
}

// milestones marks 25/50/75/100 percent of the required hours. ReachedOn is
// the logged date of the verified entry that crossed the threshold; it stays
// empty when transfer credit alone covers it.
func milestones(verified []models.HourEntry, transferHours, effective, required float64) []models.Milestone {
	sorted := append([]models.HourEntry(nil), verified...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].LoggedDate.Before(sorted[j].LoggedDate) })

	out := make([]models.Milestone, 0, len(milestonePercents))
	for _, pct := range milestonePercents {
		threshold := rules.Round2(required * float64(pct) / 100)
		m := models.Milestone{Percent: pct, Hours: threshold, Reached: effective >= threshold}
		if m.Reached && transferHours < threshold {
			running := transferHours
			for _, e := range sorted {
				running += e.Hours
				if running >= threshold {
					day := e.LoggedDate
					m.ReachedOn = &day
					break
				}
			}
		}
		out = append(out, m)
	}
	return out
}

func weeklyHours(verified []models.HourEntry) []models.WeeklyHours {
	totals := make(map[string]float64)
	for _, e := range verified {
		year, week := e.LoggedDate.ISOWeek()
		totals[fmt.Sprintf("%04d-W%02d", year, week)] += e.Hours
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.WeeklyHours, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.WeeklyHours{Week: k, Hours: rules.Round2(totals[k])})
	}
	return out
}
