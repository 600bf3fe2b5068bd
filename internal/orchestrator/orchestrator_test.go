package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmagar/swag-mcp/internal/config"
	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/models"
)

const templatesDir = "../../templates"

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	cfg := &config.Config{
		ConfigDir:             t.TempDir(),
		TemplateDir:           templatesDir,
		LogDir:                t.TempDir(),
		DefaultAuthMethod:     models.AuthAuthelia,
		DefaultConfigBase:     models.BaseSubdomain,
		BackupRetentionDays:   30,
		HealthTimeoutDefaultS: 15,
		MaxFileBytes:          2 << 20,
		HealthCheckInsecure:   true,
	}
	o, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func TestNewFailsWithTemplateErrorWhenTemplateDirMissing(t *testing.T) {
	cfg := &config.Config{
		ConfigDir:   t.TempDir(),
		TemplateDir: t.TempDir(), // empty, no *.tmpl files
		LogDir:      t.TempDir(),
	}
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.TemplateError))
}

func TestBootstrapSucceedsWithValidTemplatesAndConfigDir(t *testing.T) {
	o := newTestOrchestrator(t)
	require.NoError(t, o.Bootstrap(context.Background()))
}

func sampleCreateRequest() models.ConfigRequest {
	return models.ConfigRequest{
		ConfigName:    "plex.subdomain.conf",
		ServerName:    "plex.example.com",
		UpstreamApp:   "plex",
		UpstreamPort:  32400,
		UpstreamProto: models.ProtoHTTP,
		AuthMethod:    models.AuthNone,
	}
}

func TestCreateReadUpdateRemoveEndToEnd(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	created, err := o.Create(ctx, sampleCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "plex.subdomain.conf", created.Filename)

	content, err := o.Read(ctx, "plex.subdomain.conf")
	require.NoError(t, err)
	assert.Contains(t, content, `set $upstream_app "plex";`)

	updateResult, err := o.Update(ctx, models.UpdateRequest{ConfigName: "plex.subdomain.conf", Kind: models.UpdatePort, Value: "9999"})
	require.NoError(t, err)
	assert.True(t, updateResult.Changed)

	backupName, err := o.Remove(ctx, models.RemoveRequest{ConfigName: "plex.subdomain.conf", CreateBackup: true})
	require.NoError(t, err)
	assert.NotEmpty(t, backupName)

	backups, err := o.BackupsList(ctx)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestCreateRejectsStructurallyInvalidRequest(t *testing.T) {
	o := newTestOrchestrator(t)
	req := sampleCreateRequest()
	req.UpstreamPort = 0 // violates the validate:"required,min=1,max=65535" tag
	_, err := o.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InvalidInput))
}

func TestHealthDefaultsTimeoutFromConfigWhenZero(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	o := newTestOrchestrator(t)
	domain := strings.TrimPrefix(ts.URL, "https://")

	// TimeoutSeconds is left zero: Health must fill it in from the
	// configured default before the validate:"min=1,max=300" tag runs,
	// rather than failing struct validation on the zero value.
	result, err := o.Health(context.Background(), models.HealthRequest{Domain: domain})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestDefaultsProjectsConfig(t *testing.T) {
	o := newTestOrchestrator(t)
	d := o.Defaults()
	assert.Equal(t, models.AuthAuthelia, d.AuthMethod)
	assert.Equal(t, models.BaseSubdomain, d.ConfigBase)
}

func TestBackupsCleanupFallsBackToConfiguredRetention(t *testing.T) {
	o := newTestOrchestrator(t)
	removed, err := o.BackupsCleanup(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
