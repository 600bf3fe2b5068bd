// Package validation implements the core's pure, deterministic,
// side-effect-free predicates and normalizers. None of these functions
// touch the filesystem or the network.
package validation

import (
	"net"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/models"
)

const (
	// MaxContentBytes is the hard cap applied by ValidateContentSafety.
	MaxContentBytes = 2 * 1024 * 1024
)

var (
	activeConfigPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.(subdomain|subfolder)\.conf$`)
	domainLabelPattern  = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)
	upstreamTokenPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	mcpPathPattern       = regexp.MustCompile(`^[A-Za-z0-9/_-]+$`)

	windowsReserved = map[string]struct{}{
		"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
		"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
		"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
	}
)

const op = "validation"

// ValidateConfigName checks name against the active-file pattern
// `^[A-Za-z0-9_-]+\.(subdomain|subfolder)\.conf$`.
func ValidateConfigName(name string) (string, error) {
	if !activeConfigPattern.MatchString(name) {
		return "", errs.FieldErr(op, "config_name", "must match <service>.<subdomain|subfolder>.conf")
	}
	return name, nil
}

// ValidateDomain validates and lower-cases a DNS name: labels 1-63 chars,
// `^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`, total length <=253, no
// leading or trailing dot.
func ValidateDomain(domain string) (string, error) {
	if domain == "" {
		return "", errs.FieldErr(op, "server_name", "must not be empty")
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", errs.FieldErr(op, "server_name", "must not have a leading or trailing dot")
	}
	lower := strings.ToLower(domain)
	if len(lower) > 253 {
		return "", errs.FieldErr(op, "server_name", "must be at most 253 characters")
	}
	for _, label := range strings.Split(lower, ".") {
		if len(label) < 1 || len(label) > 63 {
			return "", errs.FieldErr(op, "server_name", "each label must be 1-63 characters")
		}
		if !domainLabelPattern.MatchString(label) {
			return "", errs.FieldErr(op, "server_name", "label contains invalid characters")
		}
	}
	return lower, nil
}

// ValidateUpstreamApp accepts an IPv4 address, an IPv6 address (bracketed or
// not), or a token matching `^[A-Za-z0-9._-]+$`.
func ValidateUpstreamApp(app string) (string, error) {
	if app == "" || len(app) > 100 {
		return "", errs.FieldErr(op, "upstream_app", "must be 1-100 characters")
	}
	trimmed := strings.TrimPrefix(strings.TrimSuffix(app, "]"), "[")
	if ip := net.ParseIP(trimmed); ip != nil {
		return app, nil
	}
	if !upstreamTokenPattern.MatchString(app) {
		return "", errs.FieldErr(op, "upstream_app", "must be an IP address or match [A-Za-z0-9._-]+")
	}
	return app, nil
}

// ValidatePort checks that port is in [1, 65535].
func ValidatePort(port int) (int, error) {
	if port < 1 || port > 65535 {
		return 0, errs.FieldErr(op, "upstream_port", "must be in [1, 65535]")
	}
	return port, nil
}

// ValidateMCPPath checks that path begins with '/', contains only
// [A-Za-z0-9/_-], has no ".." segment, and is at most 100 characters.
func ValidateMCPPath(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", errs.FieldErr(op, "mcp_path", "must begin with '/'")
	}
	if len(path) > 100 {
		return "", errs.FieldErr(op, "mcp_path", "must be at most 100 characters")
	}
	if strings.Contains(path, "..") {
		return "", errs.FieldErr(op, "mcp_path", "must not contain '..'")
	}
	if !mcpPathPattern.MatchString(path) {
		return "", errs.FieldErr(op, "mcp_path", "must match [A-Za-z0-9/_-]+")
	}
	return path, nil
}

// ValidateFilePathSafety rejects absolute paths, any ".." segment, any
// segment starting with '.', and Windows-reserved names.
func ValidateFilePathSafety(name string) error {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return errs.FieldErr(op, "path", "must not be absolute")
	}
	for _, seg := range strings.Split(strings.ReplaceAll(name, "\\", "/"), "/") {
		if seg == ".." {
			return errs.FieldErr(op, "path", "must not contain '..' segments")
		}
		if strings.HasPrefix(seg, ".") && seg != "" {
			return errs.FieldErr(op, "path", "must not contain hidden segments")
		}
		base := seg
		if i := strings.Index(base, "."); i >= 0 {
			base = base[:i]
		}
		if _, reserved := windowsReserved[strings.ToUpper(base)]; reserved {
			return errs.FieldErr(op, "path", "must not use a Windows-reserved name")
		}
	}
	return nil
}

// ValidateContentSafety normalizes content to Unicode NFC, strips a leading
// BOM, and rejects the payload on embedded NUL bytes, a control-character
// ratio above 1%, or a size over 2 MiB. Returns the normalized content.
func ValidateContentSafety(content string) (string, error) {
	content = strings.TrimPrefix(content, "\uFEFF")
	normalized := norm.NFC.String(content)

	if len(normalized) > MaxContentBytes {
		return "", errs.New(errs.InvalidInput, op, "content exceeds 2 MiB limit")
	}
	if strings.ContainsRune(normalized, 0) {
		return "", errs.New(errs.InvalidInput, op, "content contains an embedded NUL byte")
	}

	total := 0
	controls := 0
	for _, r := range normalized {
		total++
		if r == '\t' || r == '\r' || r == '\n' {
			continue
		}
		if isC0orC1Control(r) {
			controls++
		}
	}
	if total > 0 && float64(controls)/float64(total) > 0.01 {
		return "", errs.New(errs.InvalidInput, op, "content has an excessive control-character ratio")
	}
	return normalized, nil
}

func isC0orC1Control(r rune) bool {
	return unicode.IsControl(r) && (r <= 0x1F || (r >= 0x7F && r <= 0x9F))
}

// DeriveServiceAndBase splits an already-validated active config name into
// its service name and base type: the substring between the last two dots
// is the base type, the substring before it is the service name.
func DeriveServiceAndBase(configName string) (service string, base models.BaseType, err error) {
	if _, verr := ValidateConfigName(configName); verr != nil {
		return "", "", verr
	}
	trimmed := strings.TrimSuffix(configName, ".conf")
	idx := strings.LastIndex(trimmed, ".")
	if idx < 0 {
		return "", "", errs.FieldErr(op, "config_name", "missing base-type segment")
	}
	return trimmed[:idx], models.BaseType(trimmed[idx+1:]), nil
}

// ValidAuthMethod reports whether m is a recognized authentication method.
func ValidAuthMethod(m models.AuthMethod) bool {
	switch m {
	case models.AuthNone, models.AuthBasic, models.AuthLDAP, models.AuthAuthelia, models.AuthAuthentik, models.AuthTinyauth:
		return true
	default:
		return false
	}
}

// ValidUpstreamProto reports whether p is "http" or "https".
func ValidUpstreamProto(p models.UpstreamProto) bool {
	return p == models.ProtoHTTP || p == models.ProtoHTTPS
}
