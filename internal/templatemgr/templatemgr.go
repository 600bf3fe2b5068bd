// Package templatemgr renders configuration text from named templates.
// Rendering uses text/template, not html/template: the output is nginx
// syntax and must never be HTML-escaped.
package templatemgr

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/models"
)

const op = "templatemgr"

// TemplateRevision is passed to every render as the `template_revision`
// variable; the four whole-file templates print it in their header line.
const TemplateRevision = "1"

// Vars is the closed variable set passed into a template render. Unknown
// variables are never added by callers; undefined ones are a hard render
// error courtesy of template.Option("missingkey=error") plus explicit
// field references (text/template has no StrictUndefined equivalent for
// map lookups, so templates only ever reference named Vars fields).
type Vars struct {
	ConfigName    string
	ServiceName   string
	ServerName    string
	UpstreamApp   string
	UpstreamPort  int
	UpstreamProto models.UpstreamProto
	AuthMethod    models.AuthMethod
	MCPEnabled    bool
	EnableQUIC    bool
	MCPPath       string
	AuthInclude   string
	TemplateRevision string
}

// PreRenderHook may rewrite Vars before rendering. PostRenderHook may
// inspect (and reject) rendered output. VarsOverrideHook may replace the
// entire Vars value. All three are null in production and exist purely to
// be testable.
type PreRenderHook func(name string, v Vars) Vars
type PostRenderHook func(name string, rendered string) error
type VarsOverrideHook func(name string, v Vars) Vars

// Manager loads templates from a read-only directory and renders them
// under a restricted variable set.
type Manager struct {
	dir       string
	mu        sync.RWMutex
	cache     map[string]*template.Template

	PreRender    PreRenderHook
	PostRender   PostRenderHook
	VarsOverride VarsOverrideHook
}

// New constructs a Manager that loads `*.tmpl` files from dir on demand.
func New(dir string) *Manager {
	return &Manager{dir: dir, cache: make(map[string]*template.Template)}
}

// knownTemplates is the fixed set of template names the rest of the system
// may reference.
var knownTemplates = map[string]struct{}{
	"subdomain":          {},
	"subfolder":          {},
	"mcp-subdomain":       {},
	"mcp-subfolder":       {},
	"mcp_location_block": {},
}

// ValidateTemplateExists fails with TemplateError if name is not one of the
// fixed template names or the backing file is missing.
func (m *Manager) ValidateTemplateExists(name string) error {
	if _, ok := knownTemplates[name]; !ok {
		return errs.Target(errs.TemplateError, op+".ValidateTemplateExists", name, fmt.Errorf("unknown template name"))
	}
	_, err := m.load(name)
	return err
}

// ValidateAllTemplates checks every known template file is present and
// parses cleanly.
func (m *Manager) ValidateAllTemplates() error {
	for name := range knownTemplates {
		if err := m.ValidateTemplateExists(name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) load(name string) (*template.Template, error) {
	m.mu.RLock()
	t, ok := m.cache[name]
	m.mu.RUnlock()
	if ok {
		return t, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.cache[name]; ok {
		return t, nil
	}

	path := filepath.Join(m.dir, name+".tmpl")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Target(errs.TemplateError, op+".load", name, err)
	}
	// Sandbox: no funcs beyond the small, safe subset below; no filesystem
	// access is reachable from within a template body, and undefined map
	// keys are a hard render error.
	t, err = template.New(name).Option("missingkey=error").Funcs(safeFuncs).Parse(string(raw))
	if err != nil {
		return nil, errs.Target(errs.TemplateError, op+".load", name, err)
	}
	m.cache[name] = t
	return t, nil
}

// safeFuncs is the restricted, explicitly safe function subset exposed to
// templates. No filesystem, process, or reflection access is offered.
var safeFuncs = template.FuncMap{
	"upper":   strings.ToUpper,
	"lower":   strings.ToLower,
	"default": func(def, v string) string {
		if v == "" {
			return def
		}
		return v
	},
}

// Render renders the named template against v, running the pre-render,
// vars-override, and post-render hooks (if installed) around it. Output is
// written without HTML escaping.
func (m *Manager) Render(name string, v Vars) (string, error) {
	if _, ok := knownTemplates[name]; !ok {
		return "", errs.Target(errs.TemplateError, op+".Render", name, fmt.Errorf("unknown template name"))
	}
	v.TemplateRevision = TemplateRevision

	if m.PreRender != nil {
		v = m.PreRender(name, v)
	}
	if m.VarsOverride != nil {
		v = m.VarsOverride(name, v)
	}

	t, err := m.load(name)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, v); err != nil {
		return "", errs.Target(errs.TemplateError, op+".Render", name, err)
	}
	rendered := buf.String()

	if m.PostRender != nil {
		if err := m.PostRender(name, rendered); err != nil {
			return "", errs.Target(errs.TemplateError, op+".Render", name, err)
		}
	}
	return rendered, nil
}

var (
	serverBlockPattern  = regexp.MustCompile(`server\s*\{`)
	upstreamAppPattern  = regexp.MustCompile(`set\s+\$upstream_app\b`)
	upstreamPortPattern = regexp.MustCompile(`set\s+\$upstream_port\b`)
	upstreamProtoPattern = regexp.MustCompile(`set\s+\$upstream_proto\b`)
	proxyPassPattern    = regexp.MustCompile(`proxy_pass\s+\$upstream_`)
	mcpLocationPattern  = regexp.MustCompile(`location\s+/mcp\b`)
	oauthDiscoveryPattern = regexp.MustCompile(`=\s*/\.well-known/oauth-authorization-server`)
	quicListenPattern   = regexp.MustCompile(`listen\s+443\s+quic`)
	altSvcPattern       = regexp.MustCompile(`(?i)add_header\s+Alt-Svc`)
	authIncludePattern  = regexp.MustCompile(`authelia-location\.conf|authentik-location\.conf|ldap-location\.conf|tinyauth-location\.conf|auth_basic\b`)
)

// CheckStructure enforces the required structural guarantees of rendered
// (or edited) output. It is invoked as post-render validation before any
// file is written.
func CheckStructure(content string, mcpEnabled, quic bool, auth models.AuthMethod) error {
	if !serverBlockPattern.MatchString(content) || !balancedBraces(content) {
		return errs.New(errs.TemplateError, op+".CheckStructure", "missing a balanced server { } block")
	}
	if !upstreamAppPattern.MatchString(content) || !upstreamPortPattern.MatchString(content) || !upstreamProtoPattern.MatchString(content) {
		return errs.New(errs.TemplateError, op+".CheckStructure", "missing one of set $upstream_app/$upstream_port/$upstream_proto")
	}
	if !proxyPassPattern.MatchString(content) {
		return errs.New(errs.TemplateError, op+".CheckStructure", "missing a proxy_pass directive referencing the upstream variables")
	}
	if mcpEnabled {
		if !mcpLocationPattern.MatchString(content) || !oauthDiscoveryPattern.MatchString(content) {
			return errs.New(errs.TemplateError, op+".CheckStructure", "mcp_enabled requires a location /mcp block and the OAuth discovery endpoint")
		}
	}
	if quic {
		if !quicListenPattern.MatchString(content) || !altSvcPattern.MatchString(content) {
			return errs.New(errs.TemplateError, op+".CheckStructure", "enable_quic requires listen 443 quic and an Alt-Svc header")
		}
	}
	hasAuthInclude := authIncludePattern.MatchString(content)
	if auth != models.AuthNone && !hasAuthInclude {
		return errs.New(errs.TemplateError, op+".CheckStructure", "non-none auth_method requires an auth include on the default location")
	}
	if auth == models.AuthNone && hasAuthInclude {
		return errs.New(errs.TemplateError, op+".CheckStructure", "auth_method none must not include an auth location")
	}
	return nil
}

func balancedBraces(content string) bool {
	depth := 0
	seenOpen := false
	for _, r := range content {
		switch r {
		case '{':
			depth++
			seenOpen = true
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return seenOpen && depth == 0
}
