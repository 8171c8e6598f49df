package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/barbell/pkg/contextkeys"
	"github.com/platinummonkey/barbell/pkg/observability"
)

// Audit actions
const (
	ActionPermissionDenied = "permission.denied"
	ActionSignIn           = "auth.sign_in"
	ActionStatusCreate     = "status.create"
	ActionStatusUpdate     = "status.update"
)

// Audit statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// AuditLogger writes security audit records to the audit_logs table.
// With a nil database it only emits the structured log line.
type AuditLogger struct {
	db  *sql.DB
	now func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(db *sql.DB) *AuditLogger {
	return &AuditLogger{db: db, now: time.Now}
}

// Log validates and persists an audit event
func (al *AuditLogger) Log(ctx context.Context, entry *AuditLog) error {
	if entry.Action == "" {
		return fmt.Errorf("action is required")
	}
	if entry.ResourceType == "" {
		return fmt.Errorf("resource_type is required")
	}
	if entry.Status == "" {
		return fmt.Errorf("status is required")
	}

	entry.CreatedAt = al.now()
	if entry.RequestID == "" {
		entry.RequestID = contextkeys.GetRequestID(ctx)
	}

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"audit_action":   entry.Action,
		"audit_resource": entry.ResourceType,
		"audit_status":   entry.Status,
		"audit_reason":   entry.Reason,
	}).Info("audit")

	if al.db == nil {
		return nil
	}

	query := `
		INSERT INTO audit_logs (
			user_id, organization_id, action, resource_type, resource_id,
			ip_address, user_agent, request_id, status, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := al.db.QueryRowContext(ctx, query,
		entry.UserID,
		entry.OrganizationID,
		entry.Action,
		entry.ResourceType,
		nullString(entry.ResourceID),
		nullString(entry.IPAddress),
		nullString(entry.UserAgent),
		nullString(entry.RequestID),
		entry.Status,
		nullString(entry.Reason),
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// FromRequest builds an audit entry with the request's client details and actor
func FromRequest(r *http.Request, authCtx *AuthContext, action, resourceType, status string) *AuditLog {
	entry := &AuditLog{
		Action:       action,
		ResourceType: resourceType,
		IPAddress:    ClientIP(r),
		UserAgent:    r.UserAgent(),
		RequestID:    contextkeys.GetRequestID(r.Context()),
		Status:       status,
	}

	if authCtx.IsAuthenticated() {
		userID := authCtx.UserID()
		entry.UserID = &userID
		entry.OrganizationID = authCtx.ActiveOrganizationID()
	}

	return entry
}

// ClientIP returns the originating client address
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
