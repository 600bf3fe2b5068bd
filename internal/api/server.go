// Package api is a thin demo HTTP layer over the Orchestrator, exposing
// the configuration core's operation contract as JSON endpoints. It is not
// part of the core itself; the dispatch front-end it stands in for is an
// external collaborator.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jmagar/swag-mcp/internal/accesslog"
	"github.com/jmagar/swag-mcp/internal/models"
	"github.com/jmagar/swag-mcp/internal/orchestrator"
)

// Server wires HTTP routes onto an Orchestrator.
type Server struct {
	Core *orchestrator.Orchestrator
	Logs *accesslog.Reader
}

// NewServer constructs a Server over an already-built Orchestrator.
func NewServer(core *orchestrator.Orchestrator, logs *accesslog.Reader) *Server {
	return &Server{Core: core, Logs: logs}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", s.handleHealthz)
	mux.HandleFunc("/v1/configs", s.handleConfigs)
	mux.HandleFunc("/v1/configs/", s.handleConfigDetail)
	mux.HandleFunc("/v1/probe", s.handleProbe)
	mux.HandleFunc("/v1/logs", s.handleLogs)
	mux.HandleFunc("/v1/access-log", s.handleAccessLog)
	mux.HandleFunc("/v1/backups", s.handleBackups)
	mux.HandleFunc("/v1/defaults", s.handleDefaults)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) handleConfigs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := models.ListFilter(r.URL.Query().Get("filter"))
		result, err := s.Core.List(r.Context(), filter)
		if err != nil {
			errorResponse(w, 500, err.Error())
			return
		}
		jsonResponse(w, 200, result)
	case http.MethodPost:
		var req models.ConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, 400, "invalid json")
			return
		}
		result, err := s.Core.Create(r.Context(), req)
		if err != nil {
			errorResponse(w, 400, err.Error())
			return
		}
		jsonResponse(w, 201, result)
	default:
		http.Error(w, "method not allowed", 405)
	}
}

func (s *Server) handleConfigDetail(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/v1/configs/"):]
	if name == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		content, err := s.Core.Read(r.Context(), name)
		if err != nil {
			errorResponse(w, 404, err.Error())
			return
		}
		jsonResponse(w, 200, map[string]string{"name": name, "content": content})
	case http.MethodPut:
		var req models.EditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, 400, "invalid json")
			return
		}
		req.ConfigName = name
		result, err := s.Core.Overwrite(r.Context(), req)
		if err != nil {
			errorResponse(w, 400, err.Error())
			return
		}
		jsonResponse(w, 200, result)
	case http.MethodPatch:
		var req models.UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, 400, "invalid json")
			return
		}
		req.ConfigName = name
		result, err := s.Core.Update(r.Context(), req)
		if err != nil {
			errorResponse(w, 400, err.Error())
			return
		}
		jsonResponse(w, 200, result)
	case http.MethodDelete:
		backup := r.URL.Query().Get("backup") == "true"
		backupName, err := s.Core.Remove(r.Context(), models.RemoveRequest{ConfigName: name, CreateBackup: backup})
		if err != nil {
			errorResponse(w, 404, err.Error())
			return
		}
		jsonResponse(w, 200, map[string]string{"status": "deleted", "backup_created": backupName})
	default:
		http.Error(w, "method not allowed", 405)
	}
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	var req models.HealthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, 400, "invalid json")
		return
	}
	result, err := s.Core.Health(r.Context(), req)
	if err != nil {
		errorResponse(w, 400, err.Error())
		return
	}
	jsonResponse(w, 200, result)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	kind := models.LogKind(r.URL.Query().Get("kind"))
	lines := 200
	if raw := r.URL.Query().Get("lines"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			lines = n
		}
	}
	text, err := s.Core.Logs(r.Context(), models.LogsRequest{Kind: kind, Lines: lines})
	if err != nil {
		errorResponse(w, 400, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(text))
}

// handleAccessLog returns a structured parse of the nginx access log for
// one service, a richer view than the plain-text logs() operation.
func (s *Server) handleAccessLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", 405)
		return
	}
	service := r.URL.Query().Get("service")
	if service == "" {
		errorResponse(w, 400, "service query parameter is required")
		return
	}
	limit := 200
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	minStatus := 0
	if raw := r.URL.Query().Get("min_status"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			minStatus = n
		}
	}
	entries, err := s.Logs.AccessEntries(service, accesslog.Options{Limit: limit, MinStatus: minStatus, Search: r.URL.Query().Get("search")})
	if err != nil {
		errorResponse(w, 500, err.Error())
		return
	}
	jsonResponse(w, 200, entries)
}

func (s *Server) handleBackups(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		backups, err := s.Core.BackupsList(r.Context())
		if err != nil {
			errorResponse(w, 500, err.Error())
			return
		}
		jsonResponse(w, 200, backups)
	case http.MethodPost:
		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				days = n
			}
		}
		removed, err := s.Core.BackupsCleanup(r.Context(), days)
		if err != nil {
			errorResponse(w, 500, err.Error())
			return
		}
		jsonResponse(w, 200, map[string]int{"removed": removed})
	default:
		http.Error(w, "method not allowed", 405)
	}
}

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, 200, s.Core.Defaults())
}

func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func errorResponse(w http.ResponseWriter, code int, msg string) {
	jsonResponse(w, code, map[string]interface{}{
		"error": msg,
		"code":  code,
	})
}
