// Package backup implements timestamped backup creation, listing with
// metadata, and retention cleanup keyed on the timestamp embedded in the
// backup's filename, not its mtime.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/fileops"
	"github.com/jmagar/swag-mcp/internal/models"
)

const op = "backup"

// marker separates an original filename from its backup suffix.
const marker = ".backup."

// secondsLayout is the whole-seconds portion of the `YYYYMMDD_HHMMSS_mmm`
// backup-filename grammar; milliseconds are appended separately since Go's
// reference-time layout cannot express an underscore-delimited fraction.
const secondsLayout = "20060102_150405"

var backupNamePattern = regexp.MustCompile(`^.+\.backup\.(\d{8}_\d{6}_\d{3})(?:\.\d+)?$`)

// Manager creates, lists, and cleans up backup files alongside the
// configuration directory. It depends on FileOps for the actual write.
type Manager struct {
	dir string
	fo  *fileops.FileOps

	mu        sync.Mutex
	lastStamp string // guards monotonic bump on same-millisecond collision
}

// New constructs a Manager rooted at dir.
func New(dir string, fo *fileops.FileOps) *Manager {
	return &Manager{dir: dir, fo: fo}
}

// CreateBackup copies the current bytes of configName into a sibling file
// named `<configName>.backup.<timestamp>`, bumping the suffix if a
// same-millisecond collision occurs. Returns the new backup's filename. It
// reads configName under its own lock; callers that already hold
// configName's lock (because the backup is one step of a larger locked
// operation) must use CreateBackupFromContent instead, or this deadlocks.
func (m *Manager) CreateBackup(ctx context.Context, configName string) (string, error) {
	src := filepath.Join(m.dir, configName)
	data, err := m.fo.ReadFile(ctx, src, 0)
	if err != nil {
		return "", errs.Wrap(errs.IOFailure, op+".CreateBackup", configName, err)
	}
	return m.writeBackup(ctx, configName, data)
}

// CreateBackupFromContent backs up data — bytes the caller already read
// under configName's lock — without re-reading the source file. Use this
// from inside FileOps.WithLock(configName's path, ...); the backup
// destination is a distinct path, so writing it does not conflict with the
// lock already held on the source.
func (m *Manager) CreateBackupFromContent(ctx context.Context, configName string, data []byte) (string, error) {
	return m.writeBackup(ctx, configName, data)
}

func (m *Manager) writeBackup(ctx context.Context, configName string, data []byte) (string, error) {
	m.mu.Lock()
	stamp := formatTimestamp(time.Now().UTC())
	if stamp == m.lastStamp {
		stamp = bumpTimestamp(stamp)
	}
	m.lastStamp = stamp
	m.mu.Unlock()

	name := configName + marker + stamp
	dst := filepath.Join(m.dir, name)
	for i := 1; m.fo.Exists(dst) && i < 1000; i++ {
		name = fmt.Sprintf("%s%s%s.%d", configName, marker, stamp, i)
		dst = filepath.Join(m.dir, name)
	}

	if err := m.fo.AtomicWrite(ctx, dst, data); err != nil {
		return "", errs.Wrap(errs.IOFailure, op+".CreateBackup", name, err)
	}
	return name, nil
}

func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s_%03d", t.Format(secondsLayout), t.Nanosecond()/1_000_000)
}

// bumpTimestamp advances a formatted timestamp by one millisecond; used
// only to avoid a same-instant collision within a single process.
func bumpTimestamp(stamp string) string {
	t, ok := parseTimestamp(stamp)
	if !ok {
		return stamp
	}
	return formatTimestamp(t.Add(time.Millisecond))
}

func parseTimestamp(stamp string) (time.Time, bool) {
	idx := strings.LastIndex(stamp, "_")
	if idx < 0 {
		return time.Time{}, false
	}
	secs, ms := stamp[:idx], stamp[idx+1:]
	t, err := time.ParseInLocation(secondsLayout, secs, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	var msVal int
	if _, err := fmt.Sscanf(ms, "%d", &msVal); err != nil {
		return time.Time{}, false
	}
	return t.Add(time.Duration(msVal) * time.Millisecond), true
}

// List returns every backup file in the directory, sorted by embedded
// timestamp descending, with the original name recovered by splitting at
// the first backup marker.
func (m *Manager) List() ([]models.Backup, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, errs.Target(errs.IOFailure, op+".List", m.dir, err)
	}
	var backups []models.Backup
	for _, e := range entries {
		if e.IsDir() || !strings.Contains(e.Name(), marker) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		ts, ok := parseEmbeddedTimestamp(e.Name())
		if !ok {
			continue
		}
		original := e.Name()[:strings.Index(e.Name(), marker)]
		backups = append(backups, models.Backup{
			Name:         e.Name(),
			OriginalName: original,
			Timestamp:    ts,
			SizeBytes:    info.Size(),
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })
	return backups, nil
}

// parseEmbeddedTimestamp recovers the UTC timestamp embedded in a backup
// filename, tolerating the monotonic-bump numeric suffix.
func parseEmbeddedTimestamp(name string) (time.Time, bool) {
	m := backupNamePattern.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	return parseTimestamp(m[1])
}

// Cleanup deletes every backup file whose name matches the backup grammar
// and whose embedded timestamp is older than retentionDays. It never
// touches a file that does not match the grammar. Returns the count
// removed.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	backups, err := m.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	removed := 0
	for _, b := range backups {
		if b.Timestamp.After(cutoff) {
			continue
		}
		if err := m.fo.Delete(ctx, filepath.Join(m.dir, b.Name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
