package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/valoracion/internal/intake"
	"github.com/dshills/valoracion/internal/risk"
	"github.com/dshills/valoracion/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := store.New(store.Config{Path: filepath.Join(t.TempDir(), "server.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	e, err := risk.Default()
	if err != nil {
		t.Fatal(err)
	}
	svc := intake.NewService(e, s, intake.Options{Redact: true})
	ts := httptest.NewServer(NewRouter(&Container{Intake: svc}))
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, "GET", ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q", got)
	}
}

func TestScore(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, "POST", ts.URL+"/v1/score", `{"answers": {"item_01": true, "item_02": 1, "item_17": "1", "item_23": true, "comentario": "x"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body ScoreResponse
	decodeBody(t, resp, &body)
	if body.Result.TotalScore != 32 || body.Result.Level != risk.LevelMedio {
		t.Errorf("result = %d/%s, want 32/medio", body.Result.TotalScore, body.Result.Level)
	}
	if len(body.Recommendations) == 0 {
		t.Error("expected recommendations")
	}
	if len(body.Ignored) != 1 || body.Ignored[0] != "comentario" {
		t.Errorf("ignored = %v", body.Ignored)
	}
}

func TestScoreBadRequest(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"answers":`},
		{"answers not a mapping", `{"answers": [true, false]}`},
		{"missing answers", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, "POST", ts.URL+"/v1/score", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestAssessmentLifecycle(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, "POST", ts.URL+"/v1/assessments", `{"case_number": "2024-0042", "answers": {"item_26": true, "item_46": true}, "notes": "celular 310 555 1234"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created AssessmentResponse
	decodeBody(t, resp, &created)
	a := created.Assessment
	if a == nil || a.ID == "" {
		t.Fatalf("missing assessment in response: %+v", created)
	}
	if a.Result.TotalScore != 40 || len(a.Result.Alerts) != 2 {
		t.Errorf("result = %+v", a.Result)
	}
	if strings.Contains(a.Notes, "310 555 1234") {
		t.Errorf("notes not redacted: %q", a.Notes)
	}

	resp = do(t, "GET", ts.URL+"/v1/assessments/"+a.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var got AssessmentResponse
	decodeBody(t, resp, &got)
	if got.Assessment.CaseNumber != "2024-0042" {
		t.Errorf("case number = %q", got.Assessment.CaseNumber)
	}

	resp = do(t, "GET", ts.URL+"/v1/assessments/"+a.ID+"/document", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("document status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %q", ct)
	}
	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(doc), "**Radicado:** 2024-0042") {
		t.Errorf("document missing case number:\n%s", doc)
	}

	resp = do(t, "GET", ts.URL+"/v1/assessments?level=medio", "")
	var list struct {
		Assessments []store.Assessment `json:"assessments"`
	}
	decodeBody(t, resp, &list)
	if len(list.Assessments) != 1 {
		t.Errorf("listed %d assessments, want 1", len(list.Assessments))
	}

	resp = do(t, "GET", ts.URL+"/v1/reports/levels", "")
	var report store.Report
	decodeBody(t, resp, &report)
	if report.Total != 1 || report.Levels[risk.LevelMedio] != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestAssessmentErrors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown id", "GET", "/v1/assessments/does-not-exist", "", http.StatusNotFound},
		{"unknown id document", "GET", "/v1/assessments/does-not-exist/document", "", http.StatusNotFound},
		{"missing case number", "POST", "/v1/assessments", `{"answers": {}}`, http.StatusBadRequest},
		{"bad body", "POST", "/v1/assessments", `not json`, http.StatusBadRequest},
		{"bad level filter", "GET", "/v1/assessments?level=critico", "", http.StatusBadRequest},
		{"bad limit", "GET", "/v1/assessments?limit=0", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRecommendations(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		level  string
		prefix string
	}{
		{"extremo", "URGENTE"},
		{"desconocido", ""},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			resp := do(t, "GET", ts.URL+"/v1/recommendations/"+tt.level, "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var body struct {
				Level           string   `json:"level"`
				Recommendations []string `json:"recommendations"`
			}
			decodeBody(t, resp, &body)
			if len(body.Recommendations) == 0 {
				t.Fatal("expected recommendations")
			}
			if !strings.HasPrefix(body.Recommendations[0], tt.prefix) {
				t.Errorf("first recommendation = %q", body.Recommendations[0])
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, "OPTIONS", ts.URL+"/v1/score", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("allow methods = %q", got)
	}
}

func TestCreateAssessmentReportsIgnoredKeys(t *testing.T) {
	ts := newTestServer(t)
	resp := do(t, "POST", ts.URL+"/v1/assessments", `{"case_number": "2024-0300", "answers": {"item_01": true, "item_99": true, "fecha": "2024-01-01"}}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var created AssessmentResponse
	decodeBody(t, resp, &created)
	want := []string{"fecha", "item_99"}
	if len(created.Ignored) != len(want) || created.Ignored[0] != want[0] || created.Ignored[1] != want[1] {
		t.Errorf("ignored = %v, want %v", created.Ignored, want)
	}
	if created.Assessment.Result.TotalScore != 1 || len(created.Assessment.PositiveItems) != 1 {
		t.Errorf("assessment = %+v", created.Assessment)
	}
}

// failingWriter accepts headers but rejects every body write.
type failingWriter struct {
	header http.Header
}

func (f *failingWriter) Header() http.Header       { return f.header }
func (f *failingWriter) WriteHeader(int)           {}
func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWriteFailuresAreLogged(t *testing.T) {
	var buf bytes.Buffer
	h := &handler{logger: log.New(&buf, "", 0)}

	h.writeJSON(&failingWriter{header: http.Header{}}, http.StatusOK, map[string]string{"status": "ok"})
	if !strings.Contains(buf.String(), "write response: connection reset") {
		t.Errorf("log = %q, want write failure", buf.String())
	}
}
