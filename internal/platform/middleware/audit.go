package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/opdreports/internal/platform/auth"
)

// AuditEntry records who accessed which report. Report output carries
// patient identifiers and contact details, so every access is logged.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Tenant     string
	ReportID   string
	Action     string // list, view, evaluate, export
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

const reportsPrefix = "/api/v1/reports"

// Audit logs access to the report API. Entries are always written to the
// logger and additionally handed to the first recorder, if any.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, reportsPrefix) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				StatusCode: c.Response().Status,
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}

			ctx := req.Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)
			entry.Tenant, _ = c.Get("tenant_id").(string)
			entry.RequestID, _ = c.Get("request_id").(string)
			entry.ReportID, entry.Action = reportAction(req.Method, path)

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "report_audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("tenant", entry.Tenant).
				Str("report", entry.ReportID).
				Str("action", entry.Action).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("report_access")

			return err
		}
	}
}

// reportAction derives the report id and action from a report API path.
func reportAction(method, path string) (reportID, action string) {
	rest := strings.Trim(strings.TrimPrefix(path, reportsPrefix), "/")
	if rest == "" {
		return "", "list"
	}
	parts := strings.Split(rest, "/")
	reportID = parts[0]
	if len(parts) == 1 {
		return reportID, "view"
	}
	switch parts[1] {
	case "evaluate":
		if method == http.MethodPost {
			return reportID, "evaluate"
		}
	case "export.csv":
		return reportID, "export"
	}
	return reportID, strings.ToLower(method)
}
