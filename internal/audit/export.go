package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"
)

// ExportFormat selects the wire format for audit log exports.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

// ExportOptions configures an audit log export. From and To bound the
// entry timestamps inclusively; zero values leave that side open.
type ExportOptions struct {
	Format       ExportFormat
	From         time.Time
	To           time.Time
	ActorSubject string
	Limit        int // 0 means no limit
}

// ExportLogs renders the matching audit entries in the requested format.
// The time filter runs before the limit, and entries arrive newest-first,
// so a bounded export returns the most recent entries of the window.
func ExportLogs(repo Repository, opts ExportOptions) ([]byte, error) {
	if opts.Format != ExportFormatCSV && opts.Format != ExportFormatJSON {
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}

	if opts.ActorSubject == "" {
		// TODO: add a QueryAll repository method with pagination for
		// full-log exports.
		return nil, fmt.Errorf("export all logs not yet implemented - use ActorSubject filter")
	}

	logs, err := repo.QueryByActor(opts.ActorSubject, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}

	if !opts.From.IsZero() || !opts.To.IsZero() {
		logs = filterByTimeRange(logs, opts.From, opts.To)
	}
	if opts.Limit > 0 && len(logs) > opts.Limit {
		logs = logs[:opts.Limit]
	}

	if opts.Format == ExportFormatCSV {
		return exportToCSV(logs)
	}
	return exportToJSON(logs)
}

func filterByTimeRange(logs []*AuditLog, from, to time.Time) []*AuditLog {
	var filtered []*AuditLog
	for _, log := range logs {
		if !from.IsZero() && log.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && log.CreatedAt.After(to) {
			continue
		}
		filtered = append(filtered, log)
	}
	return filtered
}

func exportToCSV(logs []*AuditLog) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	header := []string{
		"ID",
		"Timestamp (UTC)",
		"Actor Subject",
		"Entity Type",
		"Entity ID",
		"Action",
		"Outcome",
		"Request ID",
		"IP Address",
		"User Agent",
		"Previous Hash",
	}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, log := range logs {
		row := []string{
			log.ID,
			log.CreatedAt.Format(time.RFC3339),
			log.ActorSubject,
			log.EntityType,
			log.EntityID,
			log.Action,
			log.Outcome,
			log.RequestID,
			log.IPAddress,
			log.UserAgent,
			log.PreviousHash,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// exportLog is the JSON shape one exported entry uses. Timestamps are
// RFC 3339 strings rather than Go's default time encoding so downstream
// compliance tooling can parse them uniformly.
type exportLog struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	ActorSubject string `json:"actor_subject"`
	EntityType   string `json:"entity_type"`
	EntityID     string `json:"entity_id"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	RequestID    string `json:"request_id,omitempty"`
	IPAddress    string `json:"ip_address,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	PreviousHash string `json:"previous_hash,omitempty"`
}

func exportToJSON(logs []*AuditLog) ([]byte, error) {
	out := make([]exportLog, len(logs))
	for i, log := range logs {
		out[i] = exportLog{
			ID:           log.ID,
			Timestamp:    log.CreatedAt.Format(time.RFC3339),
			ActorSubject: log.ActorSubject,
			EntityType:   log.EntityType,
			EntityID:     log.EntityID,
			Action:       log.Action,
			Outcome:      log.Outcome,
			RequestID:    log.RequestID,
			IPAddress:    log.IPAddress,
			UserAgent:    log.UserAgent,
			PreviousHash: log.PreviousHash,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}
