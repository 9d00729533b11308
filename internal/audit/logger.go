package audit

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/veridex/listrank/internal/middleware"
)

var (
	ErrNilRepository     = errors.New("audit repository cannot be nil")
	ErrInvalidEntityType = errors.New("entity type cannot be empty")
	ErrInvalidEntityID   = errors.New("entity ID cannot be empty")
	ErrInvalidAction     = errors.New("action cannot be empty")
)

// ValidEntityTypes is the closed set of entities audit entries may refer
// to. Anything else is rejected before it reaches the log.
var ValidEntityTypes = map[string]bool{
	"operator":       true,
	"listing":        true,
	"score_snapshot": true,
	"admin_panel":    true,
	"trust_event":    true,
}

// ValidActions is the closed set of auditable actions.
var ValidActions = map[string]bool{
	"apply_score_correction": true,
	"run_score_backfill":     true,
	"recompute_trust":        true,
	"ingest_event":           true,
	"view_admin_panel":       true,
	"view_trust_breakdown":   true,
	"view_score_history":     true,
	"export_audit_logs":      true,
}

func validateLogEntry(entityType, entityID, action string) error {
	if entityType == "" || !ValidEntityTypes[entityType] {
		return ErrInvalidEntityType
	}
	if entityID == "" {
		return ErrInvalidEntityID
	}
	if action == "" || !ValidActions[action] {
		return ErrInvalidAction
	}
	return nil
}

// stripPort drops a :port suffix when present, keeping bare IPs intact.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// extractIPAddress resolves the client IP for an audit entry. Proxy headers
// win over the socket address: X-Forwarded-For (first hop), then X-Real-IP,
// then RemoteAddr.
func extractIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return stripPort(first)
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return stripPort(xri)
	}
	return stripPort(r.RemoteAddr)
}

// LogAccess records an access event attributed to the admin subject and
// request ID carried on ctx. Fail-closed: an audit write failure is
// returned to the caller rather than swallowed.
func LogAccess(ctx context.Context, repo Repository, entityType, entityID, action string) error {
	if repo == nil {
		return ErrNilRepository
	}
	if err := validateLogEntry(entityType, entityID, action); err != nil {
		return err
	}

	entry := LogEntry{
		ActorSubject: middleware.GetAdminSubject(ctx),
		EntityType:   entityType,
		EntityID:     entityID,
		Action:       action,
		Outcome:      OutcomeSuccess,
		RequestID:    middleware.GetRequestID(ctx),
	}

	_, err := repo.LogAccess(entry)
	return err
}

// LogAccessFromRequest records an access event including the request's
// client IP and user agent. Same fail-closed contract as LogAccess.
func LogAccessFromRequest(r *http.Request, repo Repository, entityType, entityID, action string) error {
	if repo == nil {
		return ErrNilRepository
	}
	if err := validateLogEntry(entityType, entityID, action); err != nil {
		return err
	}

	entry := LogEntry{
		ActorSubject: middleware.GetAdminSubject(r.Context()),
		EntityType:   entityType,
		EntityID:     entityID,
		Action:       action,
		Outcome:      OutcomeSuccess,
		RequestID:    middleware.GetRequestID(r.Context()),
		IPAddress:    extractIPAddress(r),
		UserAgent:    r.UserAgent(),
	}

	_, err := repo.LogAccess(entry)
	return err
}
