package monitoring

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "debug", want: "DEBUG"},
		{input: "WARN", want: "WARN"},
		{input: "error", want: "ERROR"},
		{input: "info", want: "INFO"},
		{input: "bogus", want: "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input).String())
		})
	}
}

func TestLoggerUsesTimestampKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "info", "json")

	logger.ReportLogger("data_quality", "2026-03-01", 82.5, 4)

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Contains(t, records[0], "timestamp")
	assert.NotContains(t, records[0], "time")
	assert.Equal(t, "Report Stored", records[0]["msg"])
	assert.Equal(t, "2026-03-01", records[0]["doc_id"])

	_, err := time.Parse(time.RFC3339, records[0]["timestamp"].(string))
	assert.NoError(t, err)
}

func TestJobLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "info", "json")

	logger.JobLogger("quality", "scheduled", 1500*time.Millisecond, nil, "total_vendors", 12)
	logger.JobLogger("fairness", "manual", time.Second, errors.New("store down"))

	records := decodeLines(t, &buf)
	require.Len(t, records, 2)

	assert.Equal(t, "Job Completed", records[0]["msg"])
	assert.Equal(t, "INFO", records[0]["level"])
	assert.Equal(t, float64(1500), records[0]["duration_ms"])
	assert.Equal(t, float64(12), records[0]["total_vendors"])

	assert.Equal(t, "Job Failed", records[1]["msg"])
	assert.Equal(t, "ERROR", records[1]["level"])
	assert.Equal(t, "store down", records[1]["error"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "warn", "json")

	logger.CacheLogger("get", "latest", true, 1)
	logger.SystemLogger("startup", "ok")
	assert.Empty(t, buf.String())

	logger.SecurityLogger("invalid_token", "10.0.0.1", "curl", map[string]interface{}{"path": "/api/v1/trigger/quality"})
	assert.Contains(t, buf.String(), "invalid_token")
}

func TestRecordJob(t *testing.T) {
	before := testutil.ToFloat64(JobRunsTotal.WithLabelValues("unit-job", "manual", "failure"))
	RecordJob("unit-job", "manual", time.Second, errors.New("x"))
	RecordJob("unit-job", "manual", time.Second, nil)
	RecordSkippedJob("unit-job", "manual")

	assert.Equal(t, before+1, testutil.ToFloat64(JobRunsTotal.WithLabelValues("unit-job", "manual", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(JobRunsTotal.WithLabelValues("unit-job", "manual", "skipped")))
}

func TestMonitoringMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "info", "json")

	r := gin.New()
	r.Use(MonitoringMiddleware(logger))
	r.GET("/reports/:collection", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/reports/:collection", "204")
	before := testutil.ToFloat64(counter)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/reports/fairness_metrics", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "/reports/fairness_metrics", records[0]["path"])
	assert.Equal(t, float64(http.StatusNoContent), records[0]["status_code"])
}
