// Package orchestrator is the thin façade that owns every manager in
// leaves-first dependency order, exposes the core's public operation set,
// and coordinates resource teardown.
package orchestrator

import (
	"context"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/jmagar/swag-mcp/internal/backup"
	"github.com/jmagar/swag-mcp/internal/config"
	"github.com/jmagar/swag-mcp/internal/configops"
	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/fieldupdate"
	"github.com/jmagar/swag-mcp/internal/fileops"
	"github.com/jmagar/swag-mcp/internal/health"
	"github.com/jmagar/swag-mcp/internal/mcpops"
	"github.com/jmagar/swag-mcp/internal/models"
	"github.com/jmagar/swag-mcp/internal/resources"
	"github.com/jmagar/swag-mcp/internal/templatemgr"
)

const op = "orchestrator"

// Orchestrator owns every manager and exposes the core's public operation
// set. No manager holds a reference back to this type.
type Orchestrator struct {
	cfg *config.Config

	validate  *validator.Validate
	fileOps   *fileops.FileOps
	templates *templatemgr.Manager
	backups   *backup.Manager
	health    *health.Monitor
	resources *resources.Manager
	mcp       *mcpops.Service
	updaters  *fieldupdate.Updaters
	configs   *configops.Operations
}

// New wires every manager in leaves-first dependency order: Validation and
// FileOps first, then each manager that depends on them.
// ValidateAllTemplates runs eagerly so a missing template directory is
// detected at startup rather than on first create().
func New(cfg *config.Config) (*Orchestrator, error) {
	fo := fileops.New()
	tm := templatemgr.New(cfg.TemplateDir)
	bm := backup.New(cfg.ConfigDir, fo)
	hm := health.New(cfg.LogDir, cfg.HealthCheckInsecure, nil)
	rm := resources.New(cfg.ConfigDir)
	mcp := &mcpops.Service{ConfigDir: cfg.ConfigDir, FileOps: fo, Templates: tm, Backups: bm}
	up := &fieldupdate.Updaters{ConfigDir: cfg.ConfigDir, FileOps: fo, Backups: bm, MCP: mcp}
	co := configops.New(cfg.ConfigDir, cfg.MaxFileBytes, rm, tm, bm, fo, up, mcp)

	if err := tm.ValidateAllTemplates(); err != nil {
		return nil, errs.Wrap(errs.TemplateError, op+".New", cfg.TemplateDir, err)
	}

	return &Orchestrator{
		cfg:       cfg,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		fileOps:   fo,
		templates: tm,
		backups:   bm,
		health:    hm,
		resources: rm,
		mcp:       mcp,
		updaters:  up,
		configs:   co,
	}, nil
}

// Close releases every resource the orchestrator's managers hold: the
// per-path lock table and the pooled HTTP client.
func (o *Orchestrator) Close() {
	o.health.Close()
	o.fileOps.ReleaseLocks()
}

func (o *Orchestrator) checkStruct(v any) error {
	if err := o.validate.Struct(v); err != nil {
		return errs.Wrap(errs.InvalidInput, op, "", err)
	}
	return nil
}

// List returns the configuration directory's contents under filter.
func (o *Orchestrator) List(ctx context.Context, filter models.ListFilter) (models.ListResult, error) {
	if err := checkCancel(ctx); err != nil {
		return models.ListResult{}, err
	}
	return o.configs.List(filter)
}

// Read returns the raw text of a single managed file.
func (o *Orchestrator) Read(ctx context.Context, name string) (string, error) {
	return o.configs.Read(ctx, name)
}

// Create validates and renders a new active config.
func (o *Orchestrator) Create(ctx context.Context, req models.ConfigRequest) (models.ConfigResult, error) {
	if err := o.checkStruct(req); err != nil {
		return models.ConfigResult{}, err
	}
	return o.configs.Create(ctx, req)
}

// Overwrite replaces the body of an existing active config.
func (o *Orchestrator) Overwrite(ctx context.Context, req models.EditRequest) (models.ConfigResult, error) {
	if err := o.checkStruct(req); err != nil {
		return models.ConfigResult{}, err
	}
	return o.configs.Overwrite(ctx, req)
}

// Update applies a single targeted field mutation.
func (o *Orchestrator) Update(ctx context.Context, req models.UpdateRequest) (models.UpdateResult, error) {
	if err := o.checkStruct(req); err != nil {
		return models.UpdateResult{}, err
	}
	return o.configs.UpdateField(ctx, req)
}

// Remove deletes an active config, optionally backing it up first.
func (o *Orchestrator) Remove(ctx context.Context, req models.RemoveRequest) (string, error) {
	if err := o.checkStruct(req); err != nil {
		return "", err
	}
	return o.configs.Remove(ctx, req)
}

// AddMCP splices an MCP location block into an existing active config.
func (o *Orchestrator) AddMCP(ctx context.Context, name, mcpPath string, createBackup bool) (models.ConfigResult, error) {
	return o.configs.AddMCP(ctx, name, mcpPath, createBackup)
}

// Health probes a domain's managed endpoints. A zero timeout falls back to
// the operator-configured default.
func (o *Orchestrator) Health(ctx context.Context, req models.HealthRequest) (models.HealthResult, error) {
	if req.TimeoutSeconds == 0 {
		req.TimeoutSeconds = o.cfg.HealthTimeoutDefaultS
	}
	if err := o.checkStruct(req); err != nil {
		return models.HealthResult{}, err
	}
	return o.health.Check(ctx, req)
}

// Logs returns the tail of a log file.
func (o *Orchestrator) Logs(ctx context.Context, req models.LogsRequest) (string, error) {
	if err := o.checkStruct(req); err != nil {
		return "", err
	}
	return o.health.GetLogs(ctx, req)
}

// BackupsList returns every backup in the configuration directory.
func (o *Orchestrator) BackupsList(ctx context.Context) ([]models.Backup, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}
	return o.backups.List()
}

// BackupsCleanup removes every backup older than the given retention, or
// the configured default when days is zero.
func (o *Orchestrator) BackupsCleanup(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = o.cfg.BackupRetentionDays
	}
	return o.backups.Cleanup(ctx, days)
}

// Defaults returns the operator-configured default auth method, base type,
// and QUIC flag.
func (o *Orchestrator) Defaults() models.Defaults {
	return o.cfg.Defaults()
}

// Bootstrap runs the startup-time checks that may proceed independently of
// one another: confirming every known template parses, and confirming the
// configuration directory is reachable. Run concurrently via
// errgroup since neither depends on the other's result.
func (o *Orchestrator) Bootstrap(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.templates.ValidateAllTemplates()
	})
	g.Go(func() error {
		_, err := o.resources.ListActive()
		return err
	})
	return g.Wait()
}

func checkCancel(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return errs.Target(errs.Cancelled, op, "", ctx.Err())
	default:
		return nil
	}
}
