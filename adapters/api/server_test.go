package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocompare/app"
	"gocompare/domain/analysis"
	"gocompare/internal"
	"gocompare/internal/config"
)

func testServer(cfg *config.Config) *Server {
	logger := internal.NewLoggerTo(internal.LogLevelError, io.Discard)
	return NewServer(app.NewBatchService(cfg, logger), nil, logger)
}

const contractJSON = `{
  "variables": [
    {"name": "subject", "role": "id", "data_type": "text"},
    {"name": "arm", "role": "group", "data_type": "categorical"},
    {"name": "score", "role": "outcome", "data_type": "numeric"}
  ]
}`

const recordsJSON = `[
  ["subject", "arm", "score"],
  ["1", "A", "10"], ["2", "A", "12"], ["3", "A", "11"], ["4", "A", "13"],
  ["5", "B", "20"], ["6", "B", "22"], ["7", "B", "21"], ["8", "B", "23"]
]`

func post(t *testing.T, s *Server, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunBatch(t *testing.T) {
	body := `{"mode": "all-outcomes-vs-group", "contract": ` + contractJSON + `, "data": {"records": ` + recordsJSON + `}}`
	rec := post(t, testServer(nil), "/v1/batches", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result analysis.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, analysis.MethodStudentT, result.Records[0].Decision.Method)
	assert.True(t, result.Records[0].Significant)
	assert.NotEmpty(t, result.Fingerprint)
}

func TestRunBatchFromJSONRows(t *testing.T) {
	rows := `{"data": {"items": [
		{"subject": "1", "arm": "A", "score": 10}, {"subject": "2", "arm": "A", "score": 12},
		{"subject": "3", "arm": "A", "score": 11}, {"subject": "4", "arm": "A", "score": 13},
		{"subject": "5", "arm": "B", "score": 20}, {"subject": "6", "arm": "B", "score": 22},
		{"subject": "7", "arm": "B", "score": 21}, {"subject": "8", "arm": "B", "score": null}
	]}}`
	body := `{"mode": "all-outcomes-vs-group", "contract": ` + contractJSON + `, "data": {"rows": ` + rows + `, "path": "data.items"}}`
	rec := post(t, testServer(nil), "/v1/batches", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result analysis.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Records, 1)
	assert.Equal(t, 7, result.Records[0].Result.N)
}

func TestPlan(t *testing.T) {
	body := `{"mode": "all-outcomes-vs-group", "contract": ` + contractJSON + `, "data": {"records": ` + recordsJSON + `}}`
	rec := post(t, testServer(nil), "/v1/plans", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report app.PlanReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, analysis.StrategyFull, report.Execution.Strategy)
	require.Len(t, report.Tasks, 1)
	assert.Equal(t, "score", report.Tasks[0].Target)
}

func TestRunBatchErrors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func(*config.Config)
		body   string
		status int
		code   string
	}{
		{
			name:   "malformed body",
			body:   `{"mode": `,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "unknown mode",
			body:   `{"mode": "everything", "contract": ` + contractJSON + `, "data": {"records": ` + recordsJSON + `}}`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "no data",
			body:   `{"mode": "all-outcomes-vs-group", "contract": ` + contractJSON + `}`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "table without database",
			body:   `{"mode": "all-outcomes-vs-group", "contract": ` + contractJSON + `, "data": {"table": "trial", "order_by": "subject"}}`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name:   "invalid design",
			body:   `{"mode": "all-outcomes-vs-group", "contract": {"variables": [{"name": "score", "role": "outcome", "data_type": "numeric"}]}, "data": {"records": ` + recordsJSON + `}}`,
			status: http.StatusBadRequest,
			code:   "INVALID_INPUT",
		},
		{
			name: "memory exceeded",
			cfg: func(c *config.Config) {
				c.Memory.FullLimit, c.Memory.ChunkLimit, c.Memory.SampledCeiling = 1, 1, 1
			},
			body:   `{"mode": "all-outcomes-vs-group", "contract": ` + contractJSON + `, "data": {"records": ` + recordsJSON + `}}`,
			status: http.StatusRequestEntityTooLarge,
			code:   "RESOURCE_EXHAUSTED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			rec := post(t, testServer(cfg), "/v1/batches", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestRunBatchStream(t *testing.T) {
	body := `{"mode": "all-outcomes-vs-group", "contract": ` + contractJSON + `, "data": {"records": ` + recordsJSON + `}}`
	rec := post(t, testServer(nil), "/v1/batches?stream=true", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	out := rec.Body.String()
	started := strings.Index(out, "event: batch_started")
	progress := strings.Index(out, "event: batch_progress")
	completed := strings.Index(out, "event: batch_completed")
	require.True(t, started >= 0 && progress > started && completed > progress, out)
	assert.Contains(t, out, `"completed":1,"total":1,"current_target":"score"`)
}

func TestSuggestionsMergedBeforeRun(t *testing.T) {
	suggestions := `{"variables": [
		{"name": "subject", "role": "id", "data_type": "text", "confidence": 0.9},
		{"name": "arm", "role": "group", "data_type": "categorical", "confidence": 0.9}
	]}`
	body := `{"mode": "all-outcomes-vs-group",
		"contract": {"variables": [{"name": "score", "role": "outcome", "data_type": "numeric"}]},
		"suggestions": ` + suggestions + `, "min_confidence": 0.5,
		"data": {"records": ` + recordsJSON + `}}`
	rec := post(t, testServer(nil), "/v1/batches", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result analysis.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "arm", result.Records[0].Task.Group)
}

func TestMergeContract(t *testing.T) {
	body := `{"contract": {"variables": [{"name": "score", "role": "outcome", "data_type": "numeric"}]},
		"suggestions": {"result": {"vars": [{"name": "arm", "role": "group", "data_type": "categorical"}]}},
		"suggestion_path": "result.vars"}`
	rec := post(t, testServer(nil), "/v1/contracts/merge", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Contract struct {
			Variables []struct {
				Name string `json:"name"`
				Role string `json:"role"`
			} `json:"variables"`
		} `json:"contract"`
	}
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&resp))
	require.Len(t, resp.Contract.Variables, 2)
	assert.Equal(t, "group", resp.Contract.Variables[1].Role)
}
