package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
)

const dateLayout = "2006-01-02"

//go:embed jurisdictions.yaml
var embeddedRules []byte

type yamlDocument struct {
	Jurisdictions []yamlRuleSet `yaml:"jurisdictions"`
}

type yamlRuleSet struct {
	models.JurisdictionRules `yaml:",inline"`
	EffectiveDate            string `yaml:"effective_date"`
}

// Registry is an immutable, versioned set of jurisdiction rules. It is safe
// for concurrent use; every accessor returns a copy.
type Registry struct {
	byCode map[string][]models.JurisdictionRules
	byID   map[string]models.JurisdictionRules
	hashes map[string]string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Parse(embeddedRules)
	})
	return defaultRegistry, defaultErr
}

// Load returns the registry stored at path, or the embedded one when path is empty.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}
	return reg, nil
}

// Parse decodes and validates a YAML rules document.
func Parse(data []byte) (*Registry, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(doc.Jurisdictions) == 0 {
		return nil, fmt.Errorf("rules document contains no jurisdictions")
	}

	records := make([]models.JurisdictionRules, 0, len(doc.Jurisdictions))
	for i, raw := range doc.Jurisdictions {
		rec := raw.JurisdictionRules
		effective, err := time.Parse(dateLayout, raw.EffectiveDate)
		if err != nil {
			return nil, fmt.Errorf("jurisdictions[%d] (%s): invalid effective_date %q", i, rec.RuleSetID, raw.EffectiveDate)
		}
		rec.EffectiveDate = effective
		records = append(records, rec)
	}
	return NewRegistry(records...)
}

// NewRegistry validates the records and builds a registry from them.
func NewRegistry(records ...models.JurisdictionRules) (*Registry, error) {
	reg := &Registry{
		byCode: make(map[string][]models.JurisdictionRules),
		byID:   make(map[string]models.JurisdictionRules),
		hashes: make(map[string]string),
	}
	for _, rec := range records {
		if err := Validate(rec); err != nil {
			return nil, err
		}
		if _, dup := reg.byID[rec.RuleSetID]; dup {
			return nil, fmt.Errorf("duplicate rule_set_id %s", rec.RuleSetID)
		}
		stored := rec.Clone()
		reg.byID[rec.RuleSetID] = stored
		reg.byCode[rec.JurisdictionCode] = append(reg.byCode[rec.JurisdictionCode], stored)
		reg.hashes[rec.RuleSetID] = Hash(stored)
	}

	for code, versions := range reg.byCode {
		sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
		for i := 1; i < len(versions); i++ {
			if versions[i].Version == versions[i-1].Version {
				return nil, fmt.Errorf("%s: duplicate version %d", code, versions[i].Version)
			}
			if !versions[i].EffectiveDate.After(versions[i-1].EffectiveDate) {
				return nil, fmt.Errorf("%s: version %d must take effect after version %d", code, versions[i].Version, versions[i-1].Version)
			}
		}
	}
	return reg, nil
}

// Validate checks a single rule set for internal consistency.
func Validate(r models.JurisdictionRules) error {
	var problems []string
	if r.RuleSetID == "" {
		problems = append(problems, "rule_set_id is required")
	}
	if r.JurisdictionCode == "" {
		problems = append(problems, "jurisdiction_code is required")
	}
	if r.Version <= 0 {
		problems = append(problems, "version must be positive")
	}
	if r.RequiredTotalHours <= 0 {
		problems = append(problems, "required_total_hours must be positive")
	}
	if r.MaxTransferHours < 0 || r.MaxTransferHours > r.RequiredTotalHours {
		problems = append(problems, "max_transfer_hours must be between 0 and required_total_hours")
	}
	if r.MinInStatePercentage < 0 || r.MinInStatePercentage > 100 {
		problems = append(problems, "min_in_state_percentage must be between 0 and 100")
	}
	if len(r.AcceptedSourceTypes) == 0 {
		problems = append(problems, "accepted_source_types must not be empty")
	}
	seen := make(map[models.SourceType]struct{}, len(r.AcceptedSourceTypes))
	for _, st := range r.AcceptedSourceTypes {
		if !st.Valid() {
			problems = append(problems, fmt.Sprintf("unknown source type %q", st))
		}
		if _, dup := seen[st]; dup {
			problems = append(problems, fmt.Sprintf("source type %q listed twice", st))
		}
		seen[st] = struct{}{}
	}
	if r.ExamRequired && r.ExamEligibilityHours <= 0 {
		problems = append(problems, "exam_eligibility_hours must be positive when an exam is required")
	}
	for name, req := range r.CategoryRequirements {
		if req.MinHours < 0 || req.MaxTransferHours < 0 {
			problems = append(problems, fmt.Sprintf("category %s has negative hours", name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("rule set %q: %s", r.RuleSetID, strings.Join(problems, "; "))
	}
	return nil
}

// Get returns the latest version for the exact jurisdiction code.
func (r *Registry) Get(code string) (models.JurisdictionRules, bool) {
	if r == nil {
		return models.JurisdictionRules{}, false
	}
	versions := r.byCode[code]
	if len(versions) == 0 {
		return models.JurisdictionRules{}, false
	}
	return versions[len(versions)-1].Clone(), true
}

// GetAsOf returns the version in force on the given date.
func (r *Registry) GetAsOf(code string, at time.Time) (models.JurisdictionRules, bool) {
	if r == nil {
		return models.JurisdictionRules{}, false
	}
	versions := r.byCode[code]
	for i := len(versions) - 1; i >= 0; i-- {
		if !versions[i].EffectiveDate.After(at) {
			return versions[i].Clone(), true
		}
	}
	return models.JurisdictionRules{}, false
}

// GetVersion returns a specific version of a jurisdiction's rules.
func (r *Registry) GetVersion(code string, version int) (models.JurisdictionRules, bool) {
	if r == nil {
		return models.JurisdictionRules{}, false
	}
	for _, v := range r.byCode[code] {
		if v.Version == version {
			return v.Clone(), true
		}
	}
	return models.JurisdictionRules{}, false
}

// ByRuleSetID finds the exact rule set referenced by a past decision.
func (r *Registry) ByRuleSetID(id string) (models.JurisdictionRules, bool) {
	if r == nil {
		return models.JurisdictionRules{}, false
	}
	rec, ok := r.byID[id]
	if !ok {
		return models.JurisdictionRules{}, false
	}
	return rec.Clone(), true
}

// Versions lists every version of a jurisdiction, oldest first.
func (r *Registry) Versions(code string) []models.JurisdictionRules {
	if r == nil {
		return nil
	}
	versions := r.byCode[code]
	out := make([]models.JurisdictionRules, len(versions))
	for i, v := range versions {
		out[i] = v.Clone()
	}
	return out
}

// List returns the latest version of every jurisdiction, ordered by code.
func (r *Registry) List() []models.JurisdictionRules {
	if r == nil {
		return nil
	}
	codes := make([]string, 0, len(r.byCode))
	for code := range r.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]models.JurisdictionRules, 0, len(codes))
	for _, code := range codes {
		latest, _ := r.Get(code)
		out = append(out, latest)
	}
	return out
}

// HashOf returns the precomputed fingerprint for a rule set id.
func (r *Registry) HashOf(ruleSetID string) string {
	if r == nil {
		return ""
	}
	return r.hashes[ruleSetID]
}
