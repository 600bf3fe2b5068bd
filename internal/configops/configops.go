// Package configops implements CRUD for whole configuration files, built on
// TemplateManager, Validation, BackupManager, FileOps, and
// ConfigFieldUpdaters.
package configops

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmagar/swag-mcp/internal/backup"
	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/fieldupdate"
	"github.com/jmagar/swag-mcp/internal/fileops"
	"github.com/jmagar/swag-mcp/internal/mcpops"
	"github.com/jmagar/swag-mcp/internal/models"
	"github.com/jmagar/swag-mcp/internal/resources"
	"github.com/jmagar/swag-mcp/internal/templatemgr"
	"github.com/jmagar/swag-mcp/internal/validation"
)

const op = "configops"

// Operations is the ConfigOperations manager.
type Operations struct {
	ConfigDir    string
	MaxFileBytes int64

	Resources *resources.Manager
	Templates *templatemgr.Manager
	Backups   *backup.Manager
	FileOps   *fileops.FileOps
	Updaters  *fieldupdate.Updaters
	MCP       *mcpops.Service
}

// New wires an Operations instance from its already-constructed
// dependencies, following the leaves-first wiring order of the core.
func New(configDir string, maxFileBytes int64, res *resources.Manager, tm *templatemgr.Manager, bm *backup.Manager, fo *fileops.FileOps, up *fieldupdate.Updaters, mcp *mcpops.Service) *Operations {
	return &Operations{
		ConfigDir:    configDir,
		MaxFileBytes: maxFileBytes,
		Resources:    res,
		Templates:    tm,
		Backups:      bm,
		FileOps:      fo,
		Updaters:     up,
		MCP:          mcp,
	}
}

// List delegates to ResourceManager, returning a deterministic
// lexical-case-insensitive order plus a count.
func (o *Operations) List(filter models.ListFilter) (models.ListResult, error) {
	var names []string
	var err error
	switch filter {
	case models.FilterActive:
		names, err = o.Resources.ListActive()
	case models.FilterSamples:
		names, err = o.Resources.ListSamples()
	case models.FilterAll, "":
		active, aerr := o.Resources.ListActive()
		if aerr != nil {
			return models.ListResult{}, aerr
		}
		samples, serr := o.Resources.ListSamples()
		if serr != nil {
			return models.ListResult{}, serr
		}
		names = append(active, samples...)
		sort.Slice(names, func(i, j int) bool { return strings.ToLower(names[i]) < strings.ToLower(names[j]) })
	default:
		return models.ListResult{}, errs.FieldErr(op+".List", "filter", "unrecognized filter")
	}
	if err != nil {
		return models.ListResult{}, err
	}

	files := make([]models.ConfigFile, 0, len(names))
	for _, n := range names {
		cf, derr := o.Resources.Describe(n)
		if derr != nil {
			continue
		}
		files = append(files, cf)
	}
	return models.ListResult{Configs: files, TotalCount: len(files), FilterUsed: filter}, nil
}

// resolveSafe joins name under ConfigDir and rejects any result that
// escapes the directory (anti-traversal), as required by read().
func (o *Operations) resolveSafe(name string) (string, error) {
	if err := validation.ValidateFilePathSafety(name); err != nil {
		return "", err
	}
	full := filepath.Join(o.ConfigDir, name)
	rel, err := filepath.Rel(o.ConfigDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", errs.FieldErr(op+".resolveSafe", "name", "resolved path escapes the configuration directory")
	}
	return full, nil
}

// Read validates name, resolves it under the managed directory, and reads
// it with a cap of MaxFileBytes.
func (o *Operations) Read(ctx context.Context, name string) (string, error) {
	if _, err := validation.ValidateConfigName(strings.TrimSuffix(name, ".sample")); err != nil && !strings.HasSuffix(name, ".sample") {
		return "", err
	}
	full, err := o.resolveSafe(name)
	if err != nil {
		return "", err
	}
	data, err := o.FileOps.ReadFile(ctx, full, o.MaxFileBytes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func authIncludeFor(method models.AuthMethod) string {
	switch method {
	case models.AuthAuthelia:
		return "authelia-location.conf"
	case models.AuthAuthentik:
		return "authentik-location.conf"
	case models.AuthLDAP:
		return "ldap-location.conf"
	case models.AuthTinyauth:
		return "tinyauth-location.conf"
	default:
		return ""
	}
}

// Create validates req, derives the base type and service name from
// config_name, selects the matching template (mcp-<base> iff mcp_enabled),
// renders it, performs the structural check, backs up any existing file of
// the same name, and writes atomically.
func (o *Operations) Create(ctx context.Context, req models.ConfigRequest) (models.ConfigResult, error) {
	if _, err := validation.ValidateConfigName(req.ConfigName); err != nil {
		return models.ConfigResult{}, err
	}
	service, base, err := validation.DeriveServiceAndBase(req.ConfigName)
	if err != nil {
		return models.ConfigResult{}, err
	}
	req.ServiceName = service
	req.Base = base

	serverName, err := validation.ValidateDomain(req.ServerName)
	if err != nil {
		return models.ConfigResult{}, err
	}
	upstreamApp, err := validation.ValidateUpstreamApp(req.UpstreamApp)
	if err != nil {
		return models.ConfigResult{}, err
	}
	if _, err := validation.ValidatePort(req.UpstreamPort); err != nil {
		return models.ConfigResult{}, err
	}
	if req.UpstreamProto == "" {
		req.UpstreamProto = models.ProtoHTTP
	}
	if !validation.ValidUpstreamProto(req.UpstreamProto) {
		return models.ConfigResult{}, errs.FieldErr(op+".Create", "upstream_proto", "must be http or https")
	}
	if req.AuthMethod == "" {
		req.AuthMethod = models.AuthAuthelia
	}
	if !validation.ValidAuthMethod(req.AuthMethod) {
		return models.ConfigResult{}, errs.FieldErr(op+".Create", "auth_method", "unrecognized auth method")
	}

	templateName := string(base)
	if req.MCPEnabled {
		templateName = "mcp-" + string(base)
	}

	v := templatemgr.Vars{
		ConfigName:    req.ConfigName,
		ServiceName:   service,
		ServerName:    serverName,
		UpstreamApp:   upstreamApp,
		UpstreamPort:  req.UpstreamPort,
		UpstreamProto: req.UpstreamProto,
		AuthMethod:    req.AuthMethod,
		MCPEnabled:    req.MCPEnabled,
		EnableQUIC:    req.EnableQUIC,
		MCPPath:       "/mcp",
		AuthInclude:   authIncludeFor(req.AuthMethod),
	}

	rendered, err := o.Templates.Render(templateName, v)
	if err != nil {
		return models.ConfigResult{}, err
	}
	if err := templatemgr.CheckStructure(rendered, req.MCPEnabled, req.EnableQUIC, req.AuthMethod); err != nil {
		return models.ConfigResult{}, err
	}

	full := filepath.Join(o.ConfigDir, req.ConfigName)

	// The existence check and the write both happen under full's lock, so a
	// concurrent Create of the same name can never see "does not exist" in
	// both goroutines and have each one write without backing up the other.
	var result models.ConfigResult
	err = o.FileOps.WithLock(ctx, full, func() error {
		var backupName string
		if o.FileOps.Exists(full) {
			raw, err := o.FileOps.ReadFileLocked(ctx, full, 0)
			if err != nil {
				return err
			}
			backupName, err = o.Backups.CreateBackupFromContent(ctx, req.ConfigName, raw)
			if err != nil {
				return err
			}
		}

		if err := o.FileOps.AtomicWriteLocked(ctx, full, []byte(rendered)); err != nil {
			return err
		}
		result = models.ConfigResult{Filename: req.ConfigName, Content: rendered, BackupCreated: backupName}
		return nil
	})
	if err != nil {
		return models.ConfigResult{}, err
	}
	return result, nil
}

// Overwrite validates the supplied body for content safety, backs up the
// current file if asked, checks the new body's structure, and writes
// atomically.
func (o *Operations) Overwrite(ctx context.Context, req models.EditRequest) (models.ConfigResult, error) {
	if _, err := validation.ValidateConfigName(req.ConfigName); err != nil {
		return models.ConfigResult{}, err
	}
	safe, err := validation.ValidateContentSafety(req.NewContent)
	if err != nil {
		return models.ConfigResult{}, err
	}

	if err := templatemgr.CheckStructure(safe, strings.Contains(safe, "location /mcp"), strings.Contains(safe, "listen 443 quic"), mcpAuthMethod(safe)); err != nil {
		return models.ConfigResult{}, err
	}

	full := filepath.Join(o.ConfigDir, req.ConfigName)
	var result models.ConfigResult
	err = o.FileOps.WithLock(ctx, full, func() error {
		if !o.FileOps.Exists(full) {
			return errs.Target(errs.NotFound, op+".Overwrite", req.ConfigName, fmt.Errorf("config not found"))
		}

		var backupName string
		if req.CreateBackup {
			raw, err := o.FileOps.ReadFileLocked(ctx, full, 0)
			if err != nil {
				return err
			}
			backupName, err = o.Backups.CreateBackupFromContent(ctx, req.ConfigName, raw)
			if err != nil {
				return err
			}
		}

		if err := o.FileOps.AtomicWriteLocked(ctx, full, []byte(safe)); err != nil {
			return err
		}
		result = models.ConfigResult{Filename: req.ConfigName, BackupCreated: backupName}
		return nil
	})
	if err != nil {
		return models.ConfigResult{}, err
	}
	return result, nil
}

// UpdateField delegates to ConfigFieldUpdaters.
func (o *Operations) UpdateField(ctx context.Context, req models.UpdateRequest) (models.UpdateResult, error) {
	if _, err := validation.ValidateConfigName(req.ConfigName); err != nil {
		return models.UpdateResult{}, err
	}
	return o.Updaters.Apply(ctx, req)
}

// Remove backs up the target if asked, then deletes it. A missing file is
// NotFound.
func (o *Operations) Remove(ctx context.Context, req models.RemoveRequest) (string, error) {
	if _, err := validation.ValidateConfigName(req.ConfigName); err != nil {
		return "", err
	}
	full := filepath.Join(o.ConfigDir, req.ConfigName)
	var backupName string
	err := o.FileOps.WithLock(ctx, full, func() error {
		if !o.FileOps.Exists(full) {
			return errs.Target(errs.NotFound, op+".Remove", req.ConfigName, fmt.Errorf("config not found"))
		}

		if req.CreateBackup {
			raw, err := o.FileOps.ReadFileLocked(ctx, full, 0)
			if err != nil {
				return err
			}
			name, err := o.Backups.CreateBackupFromContent(ctx, req.ConfigName, raw)
			if err != nil {
				return err
			}
			backupName = name
		}

		return o.FileOps.DeleteLocked(full)
	})
	if err != nil {
		return "", err
	}
	return backupName, nil
}

// AddMCP delegates to MCPOperations.
func (o *Operations) AddMCP(ctx context.Context, name, mcpPath string, createBackup bool) (models.ConfigResult, error) {
	return o.MCP.AddLocation(ctx, name, mcpPath, createBackup)
}

func mcpAuthMethod(content string) models.AuthMethod {
	switch {
	case strings.Contains(content, "authelia-location.conf"):
		return models.AuthAuthelia
	case strings.Contains(content, "authentik-location.conf"):
		return models.AuthAuthentik
	case strings.Contains(content, "ldap-location.conf"):
		return models.AuthLDAP
	case strings.Contains(content, "tinyauth-location.conf"):
		return models.AuthTinyauth
	case strings.Contains(content, "auth_basic"):
		return models.AuthBasic
	default:
		return models.AuthNone
	}
}
