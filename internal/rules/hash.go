package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
)

// HashLength is the number of hex characters kept from the digest.
const HashLength = 16

// floatDecimals fixes the textual precision of non-integer numbers.
const floatDecimals = 4

// Hash returns the fingerprint of a rule set: SHA-256 over its canonical
// serialization, hex encoded and truncated to HashLength characters.
func Hash(r models.JurisdictionRules) string {
	sum := sha256.Sum256(Canonical(r))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// Canonical serializes a rule set as compact JSON with lexicographically
// sorted keys at every level, sorted sets, integers in base 10, other
// numbers with fixed precision and dates as YYYY-MM-DD.
func Canonical(r models.JurisdictionRules) []byte {
	sources := make([]string, len(r.AcceptedSourceTypes))
	for i, st := range r.AcceptedSourceTypes {
		sources[i] = string(st)
	}
	sort.Strings(sources)
	sourceValues := make([]interface{}, len(sources))
	for i, s := range sources {
		sourceValues[i] = s
	}

	categories := make(map[string]interface{}, len(r.CategoryRequirements))
	for name, req := range r.CategoryRequirements {
		categories[name] = map[string]interface{}{
			"max_transfer_hours": req.MaxTransferHours,
			"min_hours":          req.MinHours,
		}
	}

	doc := map[string]interface{}{
		"accepted_source_types": sourceValues,
		"category_requirements": categories,
		"continuing_education_counts_toward_licensure": r.ContinuingEducationCountsTowardLicensure,
		"effective_date":          r.EffectiveDate.UTC().Format(dateLayout),
		"exam_eligibility_hours":  r.ExamEligibilityHours,
		"exam_required":           r.ExamRequired,
		"jurisdiction_code":       r.JurisdictionCode,
		"max_transfer_hours":      r.MaxTransferHours,
		"min_in_state_percentage": r.MinInStatePercentage,
		"name":                    r.Name,
		"required_total_hours":    r.RequiredTotalHours,
		"rule_set_id":             r.RuleSetID,
		"version":                 r.Version,
	}

	var buf bytes.Buffer
	writeCanonical(&buf, doc)
	return buf.Bytes()
}

func writeCanonical(buf *bytes.Buffer, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	case string:
		writeString(buf, val)
	case int:
		buf.WriteString(strconv.Itoa(val))
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'f', floatDecimals, 64))
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case nil:
		buf.WriteString("null")
	default:
		panic(fmt.Sprintf("rules: unsupported canonical type %T", v))
	}
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
}
