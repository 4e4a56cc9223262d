package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/bddprobe/internal/detect"
	"github.com/v0xg/bddprobe/internal/driver"
)

type stubAnalyzer struct {
	calls      int
	quickCalls int
	err        error
}

func (s *stubAnalyzer) Analyze(ctx context.Context, url string) (*detect.PageAnalysis, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &detect.PageAnalysis{RunID: "run-1", URL: url, Title: "Example"}, nil
}

func (s *stubAnalyzer) QuickScan(ctx context.Context, url string) (*detect.QuickScanResult, error) {
	s.quickCalls++
	if s.err != nil {
		return nil, s.err
	}
	return &detect.QuickScanResult{
		URL:   url,
		Title: "Example",
		Clickable: []detect.Candidate{{
			Descriptor: detect.ElementDescriptor{Selector: "#cta", Tag: "a", Text: "Sign up"},
			Roles:      []detect.Role{detect.RoleClickable},
		}},
	}, nil
}

type stubGenerator struct{ err error }

func (s *stubGenerator) Generate(ctx context.Context, analysis *detect.PageAnalysis) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "Feature: Example\n", nil
}

func newTestServer(analyzer Analyzer, generator FeatureGenerator) *httptest.Server {
	return httptest.NewServer(New(analyzer, generator, "", nil).Router())
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&stubAnalyzer{}, &stubGenerator{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAnalyzeEndpoint(t *testing.T) {
	analyzer := &stubAnalyzer{}
	ts := newTestServer(analyzer, &stubGenerator{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/analyze", map[string]string{"url": "https://example.com"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analysis detect.PageAnalysis
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&analysis))
	assert.Equal(t, "https://example.com", analysis.URL)
	assert.Equal(t, "run-1", analysis.RunID)
}

func TestAnalyzeCachesPerURL(t *testing.T) {
	analyzer := &stubAnalyzer{}
	ts := newTestServer(analyzer, &stubGenerator{})
	defer ts.Close()

	for i := 0; i < 3; i++ {
		resp := postJSON(t, ts.URL+"/analyze", map[string]string{"url": "https://example.com"})
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Equal(t, 1, analyzer.calls)

	resp := postJSON(t, ts.URL+"/analyze", map[string]interface{}{"url": "https://example.com", "refresh": true})
	resp.Body.Close()
	assert.Equal(t, 2, analyzer.calls)
}

func TestAnalyzeRequiresURL(t *testing.T) {
	ts := newTestServer(&stubAnalyzer{}, &stubGenerator{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/analyze", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeRejectsBadJSON(t *testing.T) {
	ts := newTestServer(&stubAnalyzer{}, &stubGenerator{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/analyze", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeNavigationFailureIs502(t *testing.T) {
	analyzer := &stubAnalyzer{err: &driver.NavigationError{URL: "https://down.example", Err: errors.New("refused")}}
	ts := newTestServer(analyzer, &stubGenerator{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/analyze", map[string]string{"url": "https://down.example"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestGenerateEndpoint(t *testing.T) {
	ts := newTestServer(&stubAnalyzer{}, &stubGenerator{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/generate", map[string]string{"url": "https://example.com"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body generateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body.Analysis.RunID)
	assert.Contains(t, body.Feature, "Feature: Example")
}

func TestQuickScanEndpoint(t *testing.T) {
	analyzer := &stubAnalyzer{}
	ts := newTestServer(analyzer, &stubGenerator{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/quick-scan", map[string]string{"url": "https://example.com"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result detect.QuickScanResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "https://example.com", result.URL)
	require.Len(t, result.Clickable, 1)
	assert.Equal(t, "#cta", result.Clickable[0].Descriptor.Selector)

	assert.Equal(t, 1, analyzer.quickCalls)
	assert.Equal(t, 0, analyzer.calls, "quick scan must not run a full analysis")
}

func TestQuickScanRequiresURL(t *testing.T) {
	ts := newTestServer(&stubAnalyzer{}, &stubGenerator{})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/quick-scan", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGeneratePersistsAndServesFeatureFile(t *testing.T) {
	dir := t.TempDir()
	ts := httptest.NewServer(New(&stubAnalyzer{}, &stubGenerator{}, dir, nil).Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/generate", map[string]string{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body generateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Equal(t, "example_com.feature", body.File)

	dl, err := http.Get(ts.URL + "/feature/example_com")
	require.NoError(t, err)
	defer dl.Body.Close()
	require.Equal(t, http.StatusOK, dl.StatusCode)

	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Feature: Example")
	assert.Contains(t, dl.Header.Get("Content-Disposition"), "example_com.feature")

	// The explicit extension form works too.
	dl2, err := http.Get(ts.URL + "/feature/example_com.feature")
	require.NoError(t, err)
	dl2.Body.Close()
	assert.Equal(t, http.StatusOK, dl2.StatusCode)
}

func TestFeatureDownloadUnknownNameIs404(t *testing.T) {
	ts := httptest.NewServer(New(&stubAnalyzer{}, &stubGenerator{}, t.TempDir(), nil).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/feature/never_generated")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFeatureDownloadRejectsTraversal(t *testing.T) {
	ts := httptest.NewServer(New(&stubAnalyzer{}, &stubGenerator{}, t.TempDir(), nil).Router())
	defer ts.Close()

	for _, name := range []string{"..%2F..%2Fetc%2Fpasswd", "UPPER", "a.b"} {
		resp, err := http.Get(ts.URL + "/feature/" + name)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)
	}
}

func TestFeatureDownloadDisabledWithoutDir(t *testing.T) {
	ts := newTestServer(&stubAnalyzer{}, &stubGenerator{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/feature/example_com")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerateProviderFailureIs502(t *testing.T) {
	ts := newTestServer(&stubAnalyzer{}, &stubGenerator{err: errors.New("provider down")})
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/generate", map[string]string{"url": "https://example.com"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
