package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/apprenticeship-hours-api/internal/models"
	appErrors "github.com/noah-isme/apprenticeship-hours-api/pkg/errors"
)

func TestProgressHandlerSummaryCacheMeta(t *testing.T) {
	stub := &progressSummaryStub{summary: &models.ApprenticeProgressSummary{EnrollmentID: "enr-1", EffectiveTotalHours: 55}}
	h := NewProgressHandler(stub)

	c, w := newTestContext(t, http.MethodGet, "/enrollments/enr-1/progress", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, false, decodeEnvelope(t, w).Meta["cache_hit"])

	stub.cached = true
	c, w = newTestContext(t, http.MethodGet, "/enrollments/enr-1/progress", nil)
	c.Params = gin.Params{{Key: "id", Value: "enr-1"}}
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "true", w.Header().Get("X-Cache-Hit"))
	env := decodeEnvelope(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, string(env.Data), `"effective_total_hours":55`)
}

func TestProgressHandlerSummaryError(t *testing.T) {
	h := NewProgressHandler(&progressSummaryStub{err: appErrors.ErrNotFound})
	c, w := newTestContext(t, http.MethodGet, "/enrollments/missing/progress", nil)

	h.Summary(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))
}
