package dto

import "github.com/noah-isme/apprenticeship-hours-api/internal/models"

// RulesDetail is a jurisdiction's current rule set with its version history.
type RulesDetail struct {
	Rules    models.JurisdictionRules `json:"rules"`
	RuleHash string                   `json:"rule_hash"`
	Versions []RulesSummary           `json:"versions"`
}
