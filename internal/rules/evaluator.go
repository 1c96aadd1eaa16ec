package rules

import (
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
)

// Lookup is the subset of the registry the evaluators need.
type Lookup interface {
	Get(code string) (models.JurisdictionRules, bool)
	HashOf(ruleSetID string) string
}

// EvaluateTransfer decides how many claimed transfer hours are credited under
// the jurisdiction's current rules. Rules are applied in order and the first
// match wins; the two caps are the exception and may both apply. The result
// depends only on the arguments, so repeated calls return identical results.
func EvaluateTransfer(reg Lookup, jurisdictionCode string, claim models.TransferCreditClaim) models.EvaluationResult {
	if !validHours(claim.HoursClaimed) || !validHours(claim.CurrentAcceptedTransferHours) {
		res := models.EvaluationResult{
			Decision:    models.DecisionRejected,
			ReasonCodes: []models.ReasonCode{models.ReasonInvalidHoursClaimed},
			Explanation: "Hours claimed and current accepted transfer hours must be finite, non-negative numbers.",
		}
		if validHours(claim.HoursClaimed) {
			res.HoursClaimed = claim.HoursClaimed
		}
		if rules, ok := lookup(reg, jurisdictionCode); ok {
			res.RuleSetID, res.RuleHash = rules.RuleSetID, hashFor(reg, rules)
		}
		return res
	}

	rules, ok := lookup(reg, jurisdictionCode)
	if !ok {
		return models.EvaluationResult{
			HoursClaimed: claim.HoursClaimed,
			Decision:     models.DecisionRequiresManualReview,
			ReasonCodes:  []models.ReasonCode{models.ReasonJurisdictionNotSupported},
			Explanation:  fmt.Sprintf("No licensure rules are registered for jurisdiction %q; the claim needs manual review.", jurisdictionCode),
		}
	}

	result := models.EvaluationResult{
		HoursClaimed: claim.HoursClaimed,
		RuleSetID:    rules.RuleSetID,
		RuleHash:     hashFor(reg, rules),
	}

	reject := func(decision models.Decision, code models.ReasonCode, explanation string) models.EvaluationResult {
		result.Decision = decision
		result.AcceptedHours = 0
		result.ReasonCodes = []models.ReasonCode{code}
		result.Explanation = explanation
		return result
	}

	if !rules.Accepts(claim.SourceType) {
		return reject(models.DecisionRejected, models.ReasonSourceTypeNotAccepted,
			fmt.Sprintf("Rule set %s does not accept hours from source type %q.", rules.RuleSetID, claim.SourceType))
	}
	if claim.SourceType == models.SourceContinuingEducation && !rules.ContinuingEducationCountsTowardLicensure {
		return reject(models.DecisionRejected, models.ReasonCENotCounted,
			fmt.Sprintf("Continuing education hours do not count toward licensure in %s.", rules.JurisdictionCode))
	}
	if claim.SourceType != models.SourceHostSite && !claim.HasSupportingDocuments {
		return reject(models.DecisionRequiresManualReview, models.ReasonDocumentsMissing,
			fmt.Sprintf("Supporting documents are required for %s hours; the claim needs manual review.", claim.SourceType))
	}

	accepted := claim.HoursClaimed
	var notes []string

	transferRemaining := float64(rules.MaxTransferHours) - claim.CurrentAcceptedTransferHours
	if claim.HoursClaimed > transferRemaining {
		accepted = math.Max(0, transferRemaining)
		result.ReasonCodes = append(result.ReasonCodes, models.ReasonTransferCapReached)
		notes = append(notes, fmt.Sprintf("the transfer cap of %s hours leaves %s available",
			FormatHours(float64(rules.MaxTransferHours)), FormatHours(math.Max(0, transferRemaining))))
	}

	programRemaining := float64(rules.RequiredTotalHours) - claim.CurrentAcceptedTransferHours
	if claim.HoursClaimed > programRemaining {
		accepted = math.Min(accepted, math.Max(0, programRemaining))
		result.ReasonCodes = append(result.ReasonCodes, models.ReasonProgramCapReached)
		notes = append(notes, fmt.Sprintf("the program total of %s hours leaves %s available",
			FormatHours(float64(rules.RequiredTotalHours)), FormatHours(math.Max(0, programRemaining))))
	}

	result.AcceptedHours = accepted
	if len(notes) == 0 {
		result.Decision = models.DecisionAccepted
		result.ReasonCodes = []models.ReasonCode{}
		result.Explanation = fmt.Sprintf("Accepted all %s claimed hours.", FormatHours(claim.HoursClaimed))
		return result
	}

	result.Decision = models.DecisionPartiallyAccepted
	result.Explanation = fmt.Sprintf("Accepted %s of %s claimed hours: %s.",
		FormatHours(accepted), FormatHours(claim.HoursClaimed), strings.Join(notes, "; "))
	return result
}

func lookup(reg Lookup, code string) (models.JurisdictionRules, bool) {
	if reg == nil {
		return models.JurisdictionRules{}, false
	}
	return reg.Get(code)
}

func hashFor(reg Lookup, rules models.JurisdictionRules) string {
	if h := reg.HashOf(rules.RuleSetID); h != "" {
		return h
	}
	return Hash(rules)
}

func validHours(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
