// Package fieldupdate implements targeted, single-field textual mutation of
// an existing config, validated structurally before being handed to FileOps
// for atomic replacement.
package fieldupdate

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/fileops"
	"github.com/jmagar/swag-mcp/internal/mcpops"
	"github.com/jmagar/swag-mcp/internal/models"
	"github.com/jmagar/swag-mcp/internal/templatemgr"
	"github.com/jmagar/swag-mcp/internal/validation"
)

const op = "fieldupdate"

var (
	portLinePattern     = regexp.MustCompile(`(?m)^\s*set\s+\$upstream_port\s+"[^"]*"\s*;\s*$`)
	upstreamLinePattern = regexp.MustCompile(`(?m)^\s*set\s+\$upstream_app\s+"[^"]*"\s*;\s*$`)
)

// BackupCreator mirrors mcpops.BackupCreator; kept separate to avoid a
// cross-package dependency on an unrelated interface name. Each updater
// already holds configName's lock when it backs the file up, so it must
// back up from the content it already read rather than CreateBackup, which
// would re-read (and re-lock) the source.
type BackupCreator interface {
	CreateBackupFromContent(ctx context.Context, configName string, data []byte) (string, error)
}

// Updaters applies single-field mutations to configs already resolved
// under the configuration directory.
type Updaters struct {
	ConfigDir string
	FileOps   *fileops.FileOps
	Backups   BackupCreator
	MCP       *mcpops.Service
}

// Apply dispatches on req.Kind to the matching updater.
func (u *Updaters) Apply(ctx context.Context, req models.UpdateRequest) (models.UpdateResult, error) {
	switch req.Kind {
	case models.UpdatePort:
		return u.updatePort(ctx, req)
	case models.UpdateUpstream:
		return u.updateUpstream(ctx, req)
	case models.UpdateApp:
		return u.updateApp(ctx, req)
	case models.UpdateAddMCP:
		return u.updateAddMCP(ctx, req)
	default:
		return models.UpdateResult{}, errs.FieldErr(op+".Apply", "kind", "unsupported update kind")
	}
}

// replaceExactlyOne replaces the single line matched by pattern with
// replacement. Zero or multiple matches is MalformedConfig.
func replaceExactlyOne(content string, pattern *regexp.Regexp, replacement string) (string, error) {
	matches := pattern.FindAllStringIndex(content, -1)
	if len(matches) != 1 {
		return "", errs.New(errs.MalformedConfig, op, fmt.Sprintf("expected exactly one matching line, found %d", len(matches)))
	}
	return pattern.ReplaceAllLiteralString(content, replacement), nil
}

// withConfigLock runs mutate under configName's lock, passing it the file's
// current content; mutate returns the new content to write back (or an
// error, which aborts with nothing written). Holding the lock across the
// read, the structural check, the backup, and the write is what makes two
// concurrent updates against the same file serialize into two consecutive
// states rather than racing on a shared stale read.
func (u *Updaters) withConfigLock(ctx context.Context, configName string, createBackup bool, mutate func(content string) (string, error)) (models.UpdateResult, error) {
	path := filepath.Join(u.ConfigDir, configName)
	var result models.UpdateResult
	err := u.FileOps.WithLock(ctx, path, func() error {
		raw, err := u.FileOps.ReadFileLocked(ctx, path, 0)
		if err != nil {
			return err
		}
		updated, err := mutate(string(raw))
		if err != nil {
			return err
		}

		if err := templatemgr.CheckStructure(updated, strings.Contains(updated, "location /mcp"), strings.Contains(updated, "listen 443 quic"), mcpops.ExtractAuthMethod(updated)); err != nil {
			return err
		}

		var backupName string
		if createBackup && u.Backups != nil {
			name, err := u.Backups.CreateBackupFromContent(ctx, configName, raw)
			if err != nil {
				return err
			}
			backupName = name
		}

		if err := u.FileOps.AtomicWriteLocked(ctx, path, []byte(updated)); err != nil {
			return err
		}
		result = models.UpdateResult{BackupCreated: backupName, Changed: true}
		return nil
	})
	if err != nil {
		return models.UpdateResult{}, err
	}
	return result, nil
}

func (u *Updaters) updatePort(ctx context.Context, req models.UpdateRequest) (models.UpdateResult, error) {
	port, err := strconv.Atoi(req.Value)
	if err != nil {
		return models.UpdateResult{}, errs.FieldErr(op+".updatePort", "value", "must be an integer")
	}
	if _, err := validation.ValidatePort(port); err != nil {
		return models.UpdateResult{}, err
	}

	return u.withConfigLock(ctx, req.ConfigName, req.CreateBackup, func(content string) (string, error) {
		return replaceExactlyOne(content, portLinePattern, fmt.Sprintf(`set $upstream_port "%d";`, port))
	})
}

func (u *Updaters) updateUpstream(ctx context.Context, req models.UpdateRequest) (models.UpdateResult, error) {
	app, err := validation.ValidateUpstreamApp(req.Value)
	if err != nil {
		return models.UpdateResult{}, err
	}
	return u.withConfigLock(ctx, req.ConfigName, req.CreateBackup, func(content string) (string, error) {
		return replaceExactlyOne(content, upstreamLinePattern, fmt.Sprintf(`set $upstream_app "%s";`, app))
	})
}

// updateApp accepts "HOST" or "HOST:PORT" and updates $upstream_app and, if
// a port was given, $upstream_port in one atomic write.
func (u *Updaters) updateApp(ctx context.Context, req models.UpdateRequest) (models.UpdateResult, error) {
	host := req.Value
	var port int
	var hasPort bool

	if idx := strings.LastIndex(req.Value, ":"); idx >= 0 {
		host = req.Value[:idx]
		portStr := req.Value[idx+1:]
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return models.UpdateResult{}, errs.FieldErr(op+".updateApp", "value", "port segment must be an integer")
		}
		if _, err := validation.ValidatePort(p); err != nil {
			return models.UpdateResult{}, err
		}
		port = p
		hasPort = true
	}
	host, err := validation.ValidateUpstreamApp(host)
	if err != nil {
		return models.UpdateResult{}, err
	}

	return u.withConfigLock(ctx, req.ConfigName, req.CreateBackup, func(content string) (string, error) {
		updated, err := replaceExactlyOne(content, upstreamLinePattern, fmt.Sprintf(`set $upstream_app "%s";`, host))
		if err != nil {
			return "", err
		}
		if hasPort {
			updated, err = replaceExactlyOne(updated, portLinePattern, fmt.Sprintf(`set $upstream_port "%d";`, port))
			if err != nil {
				return "", err
			}
		}
		return updated, nil
	})
}

func (u *Updaters) updateAddMCP(ctx context.Context, req models.UpdateRequest) (models.UpdateResult, error) {
	mcpPath := req.Value
	if mcpPath == "" {
		mcpPath = "/mcp"
	}
	result, err := u.MCP.AddLocation(ctx, req.ConfigName, mcpPath, req.CreateBackup)
	if err != nil {
		return models.UpdateResult{}, err
	}
	return models.UpdateResult{BackupCreated: result.BackupCreated, Changed: true}, nil
}
