package service

import (
	"github.com/noah-isme/apprenticeship-hours-api/internal/dto"
	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	"github.com/noah-isme/apprenticeship-hours-api/internal/rules"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

type rulesRegistry interface {
	rules.Lookup
	List() []models.JurisdictionRules
	Versions(code string) []models.JurisdictionRules
}

// RulesService exposes the jurisdiction registry to the API.
type RulesService struct {
	registry rulesRegistry
}

// NewRulesService wraps a registry.
func NewRulesService(registry rulesRegistry) *RulesService {
	return &RulesService{registry: registry}
}

// List summarises the current rule set of every jurisdiction.
func (s *RulesService) List() []dto.RulesSummary {
	all := s.registry.List()
	out := make([]dto.RulesSummary, 0, len(all))
	for _, r := range all {
		out = append(out, s.summary(r))
	}
	return out
}

// Get returns a jurisdiction's current rules, fingerprint and history.
func (s *RulesService) Get(code string) (*dto.RulesDetail, error) {
	current, ok := s.registry.Get(code)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrRulesNotFound, "rules not found for jurisdiction "+code)
	}
	versions := s.registry.Versions(code)
	detail := &dto.RulesDetail{
		Rules:    current,
		RuleHash: s.registry.HashOf(current.RuleSetID),
		Versions: make([]dto.RulesSummary, 0, len(versions)),
	}
	for _, v := range versions {
		detail.Versions = append(detail.Versions, s.summary(v))
	}
	return detail, nil
}

func (s *RulesService) summary(r models.JurisdictionRules) dto.RulesSummary {
	hash := s.registry.HashOf(r.RuleSetID)
	if hash == "" {
		hash = rules.Hash(r)
	}
	return dto.RulesSummary{
		JurisdictionCode: r.JurisdictionCode,
		Name:             r.Name,
		RuleSetID:        r.RuleSetID,
		Version:          r.Version,
		EffectiveDate:    r.EffectiveDate.Format("2006-01-02"),
		RuleHash:         hash,
	}
}
