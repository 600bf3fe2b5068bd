package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmagar/swag-mcp/internal/fileops"
)

func TestFormatParseTimestampRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 7, 123_000_000, time.UTC)
	stamp := formatTimestamp(now)
	assert.Equal(t, "20260305_143007_123", stamp)

	parsed, ok := parseTimestamp(stamp)
	require.True(t, ok)
	assert.True(t, parsed.Equal(now))
}

func TestBumpTimestampAdvancesByOneMillisecond(t *testing.T) {
	start := time.Date(2026, 3, 5, 14, 30, 7, 999_000_000, time.UTC)
	bumped := bumpTimestamp(formatTimestamp(start))
	parsed, ok := parseTimestamp(bumped)
	require.True(t, ok)
	assert.True(t, parsed.Equal(start.Add(time.Millisecond)))
}

func TestCreateBackupNamesAndContent(t *testing.T) {
	dir := t.TempDir()
	fo := fileops.New()
	ctx := context.Background()

	original := filepath.Join(dir, "plex.subdomain.conf")
	require.NoError(t, fo.AtomicWrite(ctx, original, []byte("server {}")))

	m := New(dir, fo)
	name, err := m.CreateBackup(ctx, "plex.subdomain.conf")
	require.NoError(t, err)
	assert.Contains(t, name, "plex.subdomain.conf.backup.")

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "server {}", string(data))
}

func TestCreateBackupMissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, fileops.New())
	_, err := m.CreateBackup(context.Background(), "missing.subdomain.conf")
	require.Error(t, err)
}

// writeBackupFixture writes a backup file directly under dir with an
// embedded timestamp of age, bypassing CreateBackup's real-clock stamping
// so List/Cleanup boundaries can be tested deterministically.
func writeBackupFixture(t *testing.T, dir, original string, age time.Duration) string {
	t.Helper()
	ts := time.Now().UTC().Add(-age)
	name := original + marker + formatTimestamp(ts)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644))
	return name
}

func TestListSortsByEmbeddedTimestampDescending(t *testing.T) {
	dir := t.TempDir()
	oldest := writeBackupFixture(t, dir, "plex.subdomain.conf", 72*time.Hour)
	newest := writeBackupFixture(t, dir, "plex.subdomain.conf", 1*time.Hour)

	m := New(dir, fileops.New())
	backups, err := m.List()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, newest, backups[0].Name)
	assert.Equal(t, oldest, backups[1].Name)
	assert.Equal(t, "plex.subdomain.conf", backups[0].OriginalName)
}

func TestListIgnoresNonBackupFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plex.subdomain.conf"), []byte("x"), 0o644))
	writeBackupFixture(t, dir, "plex.subdomain.conf", time.Hour)

	m := New(dir, fileops.New())
	backups, err := m.List()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestCleanupRemovesOnlyPastRetention(t *testing.T) {
	dir := t.TempDir()
	stale := writeBackupFixture(t, dir, "plex.subdomain.conf", 40*24*time.Hour)
	fresh := writeBackupFixture(t, dir, "plex.subdomain.conf", 1*24*time.Hour)

	m := New(dir, fileops.New())
	removed, err := m.Cleanup(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(dir, stale))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, fresh))
	assert.NoError(t, err)
}
