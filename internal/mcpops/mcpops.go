// Package mcpops recovers a config's upstream and auth method, renders an
// MCP location block, and splices it into the outermost server block by a
// brace-balanced scan.
package mcpops

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmagar/swag-mcp/internal/errs"
	"github.com/jmagar/swag-mcp/internal/fileops"
	"github.com/jmagar/swag-mcp/internal/models"
	"github.com/jmagar/swag-mcp/internal/templatemgr"
	"github.com/jmagar/swag-mcp/internal/validation"
)

// BackupCreator is the narrow slice of BackupManager that MCPOperations
// depends on. Defined here and implemented by *backup.Manager, so mcpops
// does not import backup and tests can supply a stub.
// CreateBackupFromContent is used rather than CreateBackup because
// AddLocation already holds configName's lock when it backs the file up.
type BackupCreator interface {
	CreateBackupFromContent(ctx context.Context, configName string, data []byte) (string, error)
}

// Service owns the file IO and rendering needed to add a location block to
// an existing config.
type Service struct {
	ConfigDir string
	FileOps   *fileops.FileOps
	Templates *templatemgr.Manager
	Backups   BackupCreator // nil disables backup-before-add
}

const op = "mcpops"

var (
	serverStartPattern = regexp.MustCompile(`^\s*server\s*\{`)
	authIncludeOrder    = []struct {
		marker string
		method models.AuthMethod
	}{
		{"authelia-location.conf", models.AuthAuthelia},
		{"authentik-location.conf", models.AuthAuthentik},
		{"ldap-location.conf", models.AuthLDAP},
		{"tinyauth-location.conf", models.AuthTinyauth},
	}
)

func upstreamValuePattern(variable string) *regexp.Regexp {
	return regexp.MustCompile(`set\s+\$` + variable + `\s+"?([^";\s]+)"?\s*;`)
}

// ExtractUpstreamValue scans content for `set $<variable> "VALUE";` and
// returns VALUE. Failure is MalformedConfig.
func ExtractUpstreamValue(content, variable string) (string, error) {
	m := upstreamValuePattern(variable).FindStringSubmatch(content)
	if m == nil {
		return "", errs.New(errs.MalformedConfig, op+".ExtractUpstreamValue", fmt.Sprintf("could not find $%s in configuration", variable))
	}
	return strings.TrimSpace(m[1]), nil
}

// ExtractAuthMethod scans the whole of content for known include markers,
// falling back to auth_basic detection, defaulting to "none". It does not
// isolate the default location block: a marker in any block counts.
func ExtractAuthMethod(content string) models.AuthMethod {
	for _, a := range authIncludeOrder {
		if strings.Contains(content, a.marker) {
			return a.method
		}
	}
	if strings.Contains(content, "auth_basic") && strings.Contains(content, "auth_basic_user_file") {
		return models.AuthBasic
	}
	return models.AuthNone
}

func authIncludeFor(method models.AuthMethod) string {
	for _, a := range authIncludeOrder {
		if a.method == method {
			return a.marker
		}
	}
	return ""
}

// LocationExists reports whether a `location <path>` block already exists
// anywhere in content (matching '=', '^~', or plain location forms).
func LocationExists(content, mcpPath string) bool {
	pat := regexp.MustCompile(`(?m)^\s*location\s+(?:=\s+|\^~\s+)?` + regexp.QuoteMeta(mcpPath) + `\s*\{`)
	return pat.MatchString(content)
}

// RenderLocationBlock renders the mcp_location_block template for an
// existing config's recovered upstream and auth method.
func RenderLocationBlock(tm *templatemgr.Manager, mcpPath, upstreamApp, upstreamPort string, upstreamProto models.UpstreamProto, auth models.AuthMethod) (string, error) {
	port, err := strconv.Atoi(upstreamPort)
	if err != nil {
		return "", errs.New(errs.MalformedConfig, op+".RenderLocationBlock", "upstream_port is not numeric")
	}
	v := templatemgr.Vars{
		MCPPath:       mcpPath,
		UpstreamApp:   upstreamApp,
		UpstreamPort:  port,
		UpstreamProto: upstreamProto,
		AuthMethod:    auth,
		AuthInclude:   authIncludeFor(auth),
	}
	return tm.Render("mcp_location_block", v)
}

// InsertLocationBlock parses content by a brace-balanced scan to find the
// outermost `server { ... }`, and inserts block immediately before its
// closing brace, preceded by one blank line.
func InsertLocationBlock(content, block string) (string, error) {
	lines := strings.Split(content, "\n")

	serverStart := -1
	for i, line := range lines {
		if serverStartPattern.MatchString(line) {
			serverStart = i
			break
		}
	}
	if serverStart == -1 {
		return "", errs.New(errs.MalformedConfig, op+".InsertLocationBlock", "could not find start of server block")
	}

	braceCount := 0
	insertIndex := -1
	for i := serverStart; i < len(lines); i++ {
		braceCount += strings.Count(lines[i], "{")
		braceCount -= strings.Count(lines[i], "}")
		if braceCount == 0 {
			insertIndex = i
			break
		}
	}
	if insertIndex == -1 {
		return "", errs.New(errs.MalformedConfig, op+".InsertLocationBlock", "could not find server block closing brace")
	}

	out := make([]string, 0, len(lines)+2)
	out = append(out, lines[:insertIndex]...)
	out = append(out, "", block)
	out = append(out, lines[insertIndex:]...)
	return strings.Join(out, "\n"), nil
}

// AddLocation reads configName, verifies mcpPath is not already present,
// recovers the upstream and auth method, renders and splices the MCP
// location block, validates the result structurally, and writes it back
// atomically. The whole sequence runs under configName's lock, so a
// concurrent update against the same file cannot read the pre-splice
// content or land its write between this read and this write.
func (s *Service) AddLocation(ctx context.Context, configName, mcpPath string, createBackup bool) (models.ConfigResult, error) {
	mcpPath, err := validation.ValidateMCPPath(mcpPath)
	if err != nil {
		return models.ConfigResult{}, err
	}

	path := filepath.Join(s.ConfigDir, configName)
	var result models.ConfigResult
	err = s.FileOps.WithLock(ctx, path, func() error {
		raw, err := s.FileOps.ReadFileLocked(ctx, path, 0)
		if err != nil {
			return err
		}
		content := string(raw)

		if LocationExists(content, mcpPath) {
			return errs.Target(errs.Conflict, op+".AddLocation", configName, fmt.Errorf("location %s already exists", mcpPath))
		}

		upstreamApp, err := ExtractUpstreamValue(content, "upstream_app")
		if err != nil {
			return errs.Wrap(errs.MalformedConfig, op+".AddLocation", configName, err)
		}
		upstreamPort, err := ExtractUpstreamValue(content, "upstream_port")
		if err != nil {
			return errs.Wrap(errs.MalformedConfig, op+".AddLocation", configName, err)
		}
		upstreamProtoRaw, err := ExtractUpstreamValue(content, "upstream_proto")
		if err != nil {
			upstreamProtoRaw = string(models.ProtoHTTP)
		}
		upstreamProto := models.UpstreamProto(upstreamProtoRaw)
		if !validation.ValidUpstreamProto(upstreamProto) {
			upstreamProto = models.ProtoHTTP
		}
		authMethod := ExtractAuthMethod(content)

		block, err := RenderLocationBlock(s.Templates, mcpPath, upstreamApp, upstreamPort, upstreamProto, authMethod)
		if err != nil {
			return err
		}

		updated, err := InsertLocationBlock(content, block)
		if err != nil {
			return err
		}
		// The oauth-discovery requirement of CheckStructure's mcp_enabled branch
		// applies to the create() flow, not a standalone add_mcp onto a config
		// that was never created as an MCP variant; check the weaker invariant
		// (still a balanced server block referencing the upstream vars) instead.
		if err := templatemgr.CheckStructure(updated, false, false, authMethod); err != nil {
			return err
		}

		var backupName string
		if createBackup && s.Backups != nil {
			backupName, err = s.Backups.CreateBackupFromContent(ctx, configName, raw)
			if err != nil {
				return err
			}
		}

		if err := s.FileOps.AtomicWriteLocked(ctx, path, []byte(updated)); err != nil {
			return err
		}

		result = models.ConfigResult{Filename: configName, Content: updated, BackupCreated: backupName}
		return nil
	})
	if err != nil {
		return models.ConfigResult{}, err
	}
	return result, nil
}
