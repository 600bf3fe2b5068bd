package accesslog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAccessLog(t *testing.T, dir, service, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nginx"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nginx", service+".access.log"), []byte(content), 0o644))
}

const sampleLine = `10.0.0.5 - - [05/Mar/2026:14:22:01 +0000] "GET /mcp HTTP/1.1" 200 512 "-" "curl/8.0" "0.004"`

func TestAccessEntriesParsesCombinedFormat(t *testing.T) {
	dir := t.TempDir()
	writeAccessLog(t, dir, "plex", sampleLine+"\n")

	r := New(dir)
	entries, err := r.AccessEntries("plex", Options{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "10.0.0.5", e.RemoteAddr)
	assert.Equal(t, "GET /mcp HTTP/1.1", e.Request)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, int64(512), e.BodyBytesSent)
	assert.Equal(t, "curl/8.0", e.UserAgent)
	assert.Equal(t, 0.004, e.RequestTime)
}

func TestAccessEntriesSkipsUnparsableLines(t *testing.T) {
	dir := t.TempDir()
	writeAccessLog(t, dir, "plex", "not a log line\n"+sampleLine+"\n")

	r := New(dir)
	entries, err := r.AccessEntries("plex", Options{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAccessEntriesMissingFileReturnsEmptyNotError(t *testing.T) {
	r := New(t.TempDir())
	entries, err := r.AccessEntries("missing-service", Options{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAccessEntriesSearchFilter(t *testing.T) {
	other := `10.0.0.9 - - [05/Mar/2026:14:23:01 +0000] "GET /health HTTP/1.1" 200 12 "-" "curl/8.0" "0.001"`
	dir := t.TempDir()
	writeAccessLog(t, dir, "plex", sampleLine+"\n"+other+"\n")

	r := New(dir)
	entries, err := r.AccessEntries("plex", Options{Search: "/health"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Request, "/health")
}

func TestAccessEntriesLimitKeepsMostRecent(t *testing.T) {
	lines := ""
	for i := 0; i < 5; i++ {
		lines += sampleLine + "\n"
	}
	dir := t.TempDir()
	writeAccessLog(t, dir, "plex", lines)

	r := New(dir)
	entries, err := r.AccessEntries("plex", Options{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAccessEntriesLimitKeepsOrderAcrossWraparound(t *testing.T) {
	ok := `10.0.0.1 - - [05/Mar/2026:14:22:01 +0000] "GET /a HTTP/1.1" 200 1 "-" "-" "0.001"`
	err := `10.0.0.1 - - [05/Mar/2026:14:22:02 +0000] "GET /b HTTP/1.1" 500 1 "-" "-" "0.001"`
	dir := t.TempDir()
	writeAccessLog(t, dir, "plex", ok+"\n"+ok+"\n"+err+"\n")

	r := New(dir)
	entries, e := r.AccessEntries("plex", Options{Limit: 2})
	require.NoError(t, e)
	require.Len(t, entries, 2)
	assert.Equal(t, "GET /a HTTP/1.1", entries[0].Request)
	assert.Equal(t, "GET /b HTTP/1.1", entries[1].Request)
}

func TestAccessEntriesMinStatusFiltersBelowThreshold(t *testing.T) {
	ok := `10.0.0.1 - - [05/Mar/2026:14:22:01 +0000] "GET /a HTTP/1.1" 200 1 "-" "-" "0.001"`
	bad := `10.0.0.1 - - [05/Mar/2026:14:22:02 +0000] "GET /b HTTP/1.1" 500 1 "-" "-" "0.001"`
	dir := t.TempDir()
	writeAccessLog(t, dir, "plex", ok+"\n"+bad+"\n")

	r := New(dir)
	entries, err := r.AccessEntries("plex", Options{MinStatus: 400})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 500, entries[0].Status)
}
