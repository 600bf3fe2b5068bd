// Package models holds the typed request/result records that sit at the
// boundary between the command-dispatch front-end and the core managers.
// Every interior function takes one of these typed forms rather than a
// loose bag of strings.
package models

import "time"

// Classification of a ConfigFile.
type Classification string

const (
	ClassActive  Classification = "active"
	ClassSample  Classification = "sample"
	ClassBackup  Classification = "backup"
	ClassOther   Classification = "other"
)

// ConfigFile describes a single entry in the managed configuration
// directory, regardless of classification.
type ConfigFile struct {
	Name           string         `json:"name"`
	Path           string         `json:"path"`
	SizeBytes      int64          `json:"size_bytes"`
	ModifiedAt     time.Time      `json:"modified_at"`
	Classification Classification `json:"classification"`
}

// Backup describes a timestamped copy of a prior version of an active
// config file.
type Backup struct {
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	Timestamp    time.Time `json:"timestamp"`
	SizeBytes    int64     `json:"size_bytes"`
}

// ListFilter selects which subset of the configuration directory to return.
type ListFilter string

const (
	FilterAll     ListFilter = "all"
	FilterActive  ListFilter = "active"
	FilterSamples ListFilter = "samples"
)

// AuthMethod is the set of supported authentication gate types.
type AuthMethod string

const (
	AuthNone      AuthMethod = "none"
	AuthBasic     AuthMethod = "basic"
	AuthLDAP      AuthMethod = "ldap"
	AuthAuthelia  AuthMethod = "authelia"
	AuthAuthentik AuthMethod = "authentik"
	AuthTinyauth  AuthMethod = "tinyauth"
)

// UpstreamProto is the upstream connection scheme.
type UpstreamProto string

const (
	ProtoHTTP  UpstreamProto = "http"
	ProtoHTTPS UpstreamProto = "https"
)

// BaseType is the nginx-config family recovered from a config filename.
type BaseType string

const (
	BaseSubdomain BaseType = "subdomain"
	BaseSubfolder BaseType = "subfolder"
)

// ConfigRequest is the input to the create operation.
type ConfigRequest struct {
	ConfigName    string        `json:"config_name" validate:"required"`
	ServerName    string        `json:"server_name" validate:"required,max=253"`
	UpstreamApp   string        `json:"upstream_app" validate:"required,max=100"`
	UpstreamPort  int           `json:"upstream_port" validate:"required,min=1,max=65535"`
	UpstreamProto UpstreamProto `json:"upstream_proto"`
	MCPEnabled    bool          `json:"mcp_enabled"`
	AuthMethod    AuthMethod    `json:"auth_method"`
	EnableQUIC    bool          `json:"enable_quic"`

	// ServiceName and Base are derived from ConfigName by ConfigOperations;
	// callers do not set them.
	ServiceName string   `json:"-"`
	Base        BaseType `json:"-"`
}

// ConfigResult is returned by operations that produce or mutate a single
// config file.
type ConfigResult struct {
	Filename      string   `json:"filename"`
	Content       string   `json:"content,omitempty"`
	BackupCreated string   `json:"backup_created,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// ListResult is returned by the list operation.
type ListResult struct {
	Configs    []ConfigFile `json:"configs"`
	TotalCount int          `json:"total_count"`
	FilterUsed ListFilter   `json:"filter_used"`
}

// EditRequest is the input to the overwrite operation.
type EditRequest struct {
	ConfigName   string `json:"config_name" validate:"required"`
	NewContent   string `json:"new_content" validate:"required"`
	CreateBackup bool   `json:"create_backup"`
}

// UpdateKind enumerates the supported single-field update operations.
type UpdateKind string

const (
	UpdatePort    UpdateKind = "port"
	UpdateUpstream UpdateKind = "upstream"
	UpdateApp     UpdateKind = "app"
	UpdateAddMCP  UpdateKind = "add_mcp"
)

// UpdateRequest is the input to the update operation.
type UpdateRequest struct {
	ConfigName   string     `json:"config_name" validate:"required"`
	Kind         UpdateKind `json:"kind" validate:"required"`
	Value        string     `json:"value"`
	CreateBackup bool       `json:"create_backup"`
}

// UpdateResult is returned by the update operation.
type UpdateResult struct {
	BackupCreated string `json:"backup_created,omitempty"`
	Changed       bool   `json:"changed"`
}

// RemoveRequest is the input to the remove operation.
type RemoveRequest struct {
	ConfigName   string `json:"config_name" validate:"required"`
	CreateBackup bool   `json:"create_backup"`
}

// HealthRequest is the input to the health probe operation.
type HealthRequest struct {
	Domain          string `json:"domain" validate:"required,max=253"`
	TimeoutSeconds  int    `json:"timeout" validate:"min=1,max=300"`
	FollowRedirects bool   `json:"follow_redirects"`
}

// HealthResult is the outcome of a health probe.
type HealthResult struct {
	Domain         string `json:"domain"`
	URL            string `json:"url"`
	StatusCode     *int   `json:"status_code,omitempty"`
	ResponseTimeMS *int   `json:"response_time_ms,omitempty"`
	ResponseBody   string `json:"response_body,omitempty"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	RedirectChain  []string `json:"redirect_chain,omitempty"`
}

// LogKind enumerates the log categories recognized by HealthMonitor.
type LogKind string

const (
	LogNginxError  LogKind = "nginx-error"
	LogNginxAccess LogKind = "nginx-access"
	LogFail2ban    LogKind = "fail2ban"
	LogLetsencrypt LogKind = "letsencrypt"
	LogRenewal     LogKind = "renewal"
)

// LogsRequest is the input to the logs operation.
type LogsRequest struct {
	Kind  LogKind `json:"kind" validate:"required"`
	Lines int     `json:"lines" validate:"min=1,max=1000"`
}

// Defaults is a snapshot of the operator-configured defaults, returned by
// the defaults() operation.
type Defaults struct {
	AuthMethod   AuthMethod `json:"auth_method"`
	ConfigBase   BaseType   `json:"config_base"`
	QUICEnabled  bool       `json:"quic_enabled"`
}
