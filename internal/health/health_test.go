package health

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmagar/swag-mcp/internal/models"
)

func TestClassify(t *testing.T) {
	assert.True(t, classify(200, "/health"))
	assert.True(t, classify(204, "/"))
	assert.False(t, classify(401, "/health"))
	assert.True(t, classify(401, "/mcp"))
	assert.True(t, classify(403, "/mcp"))
	assert.True(t, classify(406, "/mcp"))
	assert.False(t, classify(500, "/mcp"))
	assert.False(t, classify(301, "/"))
}

func domainFor(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	return strings.TrimPrefix(ts.URL, "https://")
}

func TestCheckSucceedsOnFirstCandidate(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	m := New(t.TempDir(), true, nil)
	defer m.Close()

	result, err := m.Check(context.Background(), models.HealthRequest{Domain: domainFor(t, ts), TimeoutSeconds: 5})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.NotNil(t, result.StatusCode)
	assert.Equal(t, http.StatusOK, *result.StatusCode)
	assert.Contains(t, result.URL, "/health")
}

func TestCheckFallsThroughToMCPOn401(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusNotFound)
		case "/mcp":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	m := New(t.TempDir(), true, nil)
	defer m.Close()

	result, err := m.Check(context.Background(), models.HealthRequest{Domain: domainFor(t, ts), TimeoutSeconds: 6})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.URL, "/mcp")
}

func TestCheckAllCandidatesFail(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	m := New(t.TempDir(), true, nil)
	defer m.Close()

	result, err := m.Check(context.Background(), models.HealthRequest{Domain: domainFor(t, ts), TimeoutSeconds: 3})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestGetLogsMissingFileReturnsFriendlyMessageNotError(t *testing.T) {
	m := New(t.TempDir(), false, nil)
	out, err := m.GetLogs(context.Background(), models.LogsRequest{Kind: models.LogNginxAccess, Lines: 10})
	require.NoError(t, err)
	assert.Contains(t, out, "log file not found")
}

func TestGetLogsUnrecognizedKindIsFieldError(t *testing.T) {
	m := New(t.TempDir(), false, nil)
	_, err := m.GetLogs(context.Background(), models.LogsRequest{Kind: models.LogKind("bogus"), Lines: 10})
	require.Error(t, err)
}

func TestTailLinesReturnsLastNLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "access.log")

	var sb strings.Builder
	for i := 1; i <= 500; i++ {
		fmt.Fprintf(&sb, "line-%d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	lines, err := tailLines(path, 5)
	require.NoError(t, err)
	require.Len(t, lines, 5)
	assert.Equal(t, "line-496", lines[0])
	assert.Equal(t, "line-500", lines[4])
}

func TestTailLinesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.log")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	lines, err := tailLines(path, 10)
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestGetLogsRespectsLogPathOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "custom"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom", "renewal.log"), []byte("renewed ok\n"), 0o644))

	m := New(dir, false, map[models.LogKind]string{models.LogRenewal: "custom/renewal.log"})
	out, err := m.GetLogs(context.Background(), models.LogsRequest{Kind: models.LogRenewal, Lines: 10})
	require.NoError(t, err)
	assert.Contains(t, out, "renewed ok")
}
