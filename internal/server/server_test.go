package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/agenthands/taxgraph/internal/config"
	"github.com/agenthands/taxgraph/internal/export"
	"github.com/agenthands/taxgraph/internal/ingest"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	gstinA = "27AAAAA0000A1Z5"
	gstinB = "29BBBBB1111B1Z6"
	gstinC = "07CCCCC2222C1Z7"
)

func writeFilings(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		ingest.TaxpayersFile: "gstin,legal_name,status,trust_score,state_code\n" +
			gstinA + ",Alpha Traders,Active,0.8,27\n" +
			gstinB + ",Beta Exports,Active,0.8,29\n" +
			gstinC + ",Gamma Metals,Suspended,0.3,07\n",
		ingest.OutwardFile: "invoice_id,supplier_gstin,receiver_gstin,total_value,tax_amount,invoice_date\n" +
			"INV-1," + gstinA + "," + gstinB + ",3000000,540000,2024-04-01\n" +
			"INV-2," + gstinB + "," + gstinC + ",3000000,540000,2024-04-02\n" +
			"INV-3," + gstinC + "," + gstinA + ",3000000,540000,2024-04-03\n",
		ingest.InwardFile: "invoice_id,supplier_gstin,receiver_gstin,total_value,itc_available\n" +
			"INV-1," + gstinA + "," + gstinB + ",3000000,540000\n" +
			"INV-9," + gstinC + "," + gstinB + ",250000,45000\n",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func newTestServer(t *testing.T, load bool) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	cfg := config.Default()
	cfg.Data.Dir = writeFilings(t)

	s, err := NewServer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	if load {
		_, _, err := s.Reload(context.Background())
		require.NoError(t, err)
	}
	return s, s.SetupRouter()
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestServer_NotLoaded(t *testing.T) {
	_, r := newTestServer(t, false)

	w := do(r, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["loaded"])

	w = do(r, http.MethodGet, "/api/v1/stats")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_ReloadThenQuery(t *testing.T) {
	_, r := newTestServer(t, false)

	w := do(r, http.MethodPost, "/api/v1/reload")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, 3.0, body["nodes"])
	assert.Equal(t, 3.0, body["edges"])

	w = do(r, http.MethodPost, "/api/v1/reconcile")
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode(t, w)["summary"].(map[string]any)
	assert.Equal(t, 4.0, summary["total_invoices"])
	assert.Equal(t, 1.0, summary["fully_reconciled"])
	assert.Equal(t, 2.0, summary["missing_in_gstr2b"])
	assert.Equal(t, 1.0, summary["missing_in_gstr1"])

	w = do(r, http.MethodGet, "/api/v1/mismatches?status=missing_in_channel_a")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["total"])
}

func TestServer_FraudAndRisk(t *testing.T) {
	_, r := newTestServer(t, true)

	w := do(r, http.MethodGet, "/api/v1/fraud/circular")
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, 9_000_000.0, items[0].(map[string]any)["circular_value"])

	w = do(r, http.MethodGet, "/api/v1/fraud/unknown")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/risk/vendor/"+gstinA)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w), "risk_level")

	w = do(r, http.MethodGet, "/api/v1/risk/vendor/27XXXXX0000X1Z0")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/risk/leaderboard?limit=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decode(t, w)["total"])

	w = do(r, http.MethodGet, "/api/v1/features/"+gstinB)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["total_invoices_issued"])
}

func TestServer_ExplainAlertsStats(t *testing.T) {
	_, r := newTestServer(t, true)

	w := do(r, http.MethodGet, "/api/v1/explain/mismatch/INV-9")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["llm_enhanced"])

	w = do(r, http.MethodGet, "/api/v1/explain/mismatch/NOPE")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/v1/alerts?type=fraud")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["total"])

	w = do(r, http.MethodGet, "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, 5.0, stats["total_invoices"])
	assert.Equal(t, 3.0, stats["total_mismatches"])
	assert.Equal(t, 2.0, stats["active_taxpayers"])

	w = do(r, http.MethodGet, "/api/v1/search/beta")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode(t, w)["count"])

	w = do(r, http.MethodGet, "/api/v1/anomalies")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestServer_ExportAndMetrics(t *testing.T) {
	_, r := newTestServer(t, true)

	w := do(r, http.MethodGet, "/api/v1/export/report.xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetCircular)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	w = do(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taxgraph_graph_nodes 3")
}
