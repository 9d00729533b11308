package audit

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func exportAsJSON(t *testing.T, repo Repository, opts ExportOptions) []exportLog {
	t.Helper()
	data, err := ExportLogs(repo, opts)
	if err != nil {
		t.Fatalf("ExportLogs() error = %v", err)
	}
	var logs []exportLog
	if err := json.Unmarshal(data, &logs); err != nil {
		t.Fatalf("decode export JSON: %v", err)
	}
	return logs
}

func TestExportLogs_CSVFilteredByActor(t *testing.T) {
	repo := NewInMemoryRepository()
	seedEntries(t, repo, []LogEntry{
		{ActorSubject: "ops-admin", EntityType: "operator", EntityID: "op-1", Action: "recompute_trust", Outcome: OutcomeSuccess},
		{ActorSubject: "ops-admin", EntityType: "operator", EntityID: "op-1", Action: "apply_score_correction", Outcome: OutcomeSuccess},
		{ActorSubject: "verification-svc", EntityType: "trust_event", EntityID: "license_verified", Action: "ingest_event", Outcome: OutcomeSuccess},
	})

	now := time.Now().UTC()
	data, err := ExportLogs(repo, ExportOptions{
		Format:       ExportFormatCSV,
		ActorSubject: "ops-admin",
		From:         now.Add(-time.Hour),
		To:           now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("ExportLogs() error = %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d CSV rows, want header + 2 data rows", len(records))
	}

	wantHeader := []string{"ID", "Timestamp (UTC)", "Actor Subject", "Entity Type", "Entity ID", "Action", "Outcome", "Request ID", "IP Address", "User Agent", "Previous Hash"}
	for i, col := range wantHeader {
		if i >= len(records[0]) || records[0][i] != col {
			t.Fatalf("header = %v, want %v", records[0], wantHeader)
		}
	}
	for i, row := range records[1:] {
		if row[2] != "ops-admin" {
			t.Errorf("row %d actor = %q, want ops-admin", i+1, row[2])
		}
		if _, err := time.Parse(time.RFC3339, row[1]); err != nil {
			t.Errorf("row %d timestamp %q is not RFC 3339: %v", i+1, row[1], err)
		}
	}
}

func TestExportLogs_JSONFilteredByActor(t *testing.T) {
	repo := NewInMemoryRepository()
	seedEntries(t, repo, []LogEntry{
		{ActorSubject: "ops-admin", EntityType: "operator", EntityID: "op-1", Action: "recompute_trust", Outcome: OutcomeSuccess},
		{ActorSubject: "ops-admin", EntityType: "admin_panel", EntityID: "panel", Action: "view_admin_panel", Outcome: OutcomeSuccess},
		{ActorSubject: "verification-svc", EntityType: "listing", EntityID: "lst-1", Action: "view_score_history", Outcome: OutcomeSuccess},
	})

	now := time.Now().UTC()
	logs := exportAsJSON(t, repo, ExportOptions{
		Format:       ExportFormatJSON,
		ActorSubject: "ops-admin",
		From:         now.Add(-time.Hour),
		To:           now.Add(time.Hour),
	})

	if len(logs) != 2 {
		t.Fatalf("got %d entries, want 2 for ops-admin", len(logs))
	}
	for i, log := range logs {
		if log.ActorSubject != "ops-admin" {
			t.Errorf("entry %d actor = %q, want ops-admin", i, log.ActorSubject)
		}
		if log.ID == "" || log.Timestamp == "" || log.EntityType == "" || log.Action == "" || log.Outcome == "" {
			t.Errorf("entry %d missing required fields: %+v", i, log)
		}
		if _, err := time.Parse(time.RFC3339, log.Timestamp); err != nil {
			t.Errorf("entry %d timestamp %q is not RFC 3339: %v", i, log.Timestamp, err)
		}
	}
}

func TestExportLogs_TimeWindowExcludesOlderEntries(t *testing.T) {
	repo := NewInMemoryRepository()

	stale := LogEntry{ActorSubject: "ops-admin", EntityType: "operator", EntityID: "op-1", Action: "recompute_trust", Outcome: OutcomeSuccess}
	if _, err := repo.LogAccess(stale); err != nil {
		t.Fatalf("LogAccess() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	windowStart := time.Now().UTC()
	time.Sleep(10 * time.Millisecond)

	seedEntries(t, repo, []LogEntry{
		{ActorSubject: "ops-admin", EntityType: "operator", EntityID: "op-1", Action: "apply_score_correction", Outcome: OutcomeSuccess},
		{ActorSubject: "ops-admin", EntityType: "listing", EntityID: "lst-1", Action: "view_score_history", Outcome: OutcomeSuccess},
	})

	logs := exportAsJSON(t, repo, ExportOptions{
		Format:       ExportFormatJSON,
		ActorSubject: "ops-admin",
		From:         windowStart,
		To:           windowStart.Add(time.Hour),
	})
	if len(logs) != 2 {
		t.Fatalf("got %d entries in window, want 2", len(logs))
	}
	for _, log := range logs {
		if log.Action == "recompute_trust" {
			t.Error("entry before the window start leaked into the export")
		}
	}
}

func TestExportLogs_LimitCapsOutput(t *testing.T) {
	repo := NewInMemoryRepository()
	for i := 0; i < 5; i++ {
		entry := LogEntry{ActorSubject: "ops-admin", EntityType: "operator", EntityID: "op-1", Action: "apply_score_correction", Outcome: OutcomeSuccess}
		if _, err := repo.LogAccess(entry); err != nil {
			t.Fatalf("LogAccess() error = %v", err)
		}
	}

	logs := exportAsJSON(t, repo, ExportOptions{
		Format:       ExportFormatJSON,
		ActorSubject: "ops-admin",
		Limit:        3,
	})
	if len(logs) != 3 {
		t.Errorf("got %d entries, want limit of 3", len(logs))
	}
}

func TestExportLogs_RejectsBadOptions(t *testing.T) {
	repo := NewInMemoryRepository()

	tests := []struct {
		name string
		opts ExportOptions
	}{
		{"unknown format", ExportOptions{Format: "xml", ActorSubject: "ops-admin"}},
		{"missing actor filter", ExportOptions{Format: ExportFormatJSON}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ExportLogs(repo, tt.opts); err == nil {
				t.Error("ExportLogs() accepted invalid options")
			}
		})
	}
}

func TestExportLogs_UnknownActorYieldsEmptyArray(t *testing.T) {
	repo := NewInMemoryRepository()

	logs := exportAsJSON(t, repo, ExportOptions{
		Format:       ExportFormatJSON,
		ActorSubject: "never-logged-in",
	})
	if len(logs) != 0 {
		t.Errorf("got %d entries for unknown actor, want 0", len(logs))
	}
}

func TestExportLogs_CSVEscapesUserAgent(t *testing.T) {
	repo := NewInMemoryRepository()

	entry := LogEntry{
		ActorSubject: "ops-admin",
		EntityType:   "operator",
		EntityID:     "op-1",
		Action:       "recompute_trust",
		Outcome:      OutcomeSuccess,
		UserAgent:    `ops-console/2.4 (staging, "canary" build)`,
	}
	if _, err := repo.LogAccess(entry); err != nil {
		t.Fatalf("LogAccess() error = %v", err)
	}

	data, err := ExportLogs(repo, ExportOptions{Format: ExportFormatCSV, ActorSubject: "ops-admin"})
	if err != nil {
		t.Fatalf("ExportLogs() error = %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV with quoted user agent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d CSV rows, want header + 1 data row", len(records))
	}
	if records[1][9] != entry.UserAgent {
		t.Errorf("user agent round-tripped as %q, want %q", records[1][9], entry.UserAgent)
	}
}

func TestExportLogs_AnonymizedIPAppearsTruncated(t *testing.T) {
	repo := NewInMemoryRepository()

	entry := LogEntry{
		ActorSubject: "ops-admin",
		EntityType:   "operator",
		EntityID:     "op-1",
		Action:       "apply_score_correction",
		Outcome:      OutcomeSuccess,
		IPAddress:    "198.51.100.201",
	}
	if _, err := repo.LogAccess(entry); err != nil {
		t.Fatalf("LogAccess() error = %v", err)
	}
	if _, err := repo.AnonymizeIPsBefore(time.Now().Add(time.Minute), 10); err != nil {
		t.Fatalf("AnonymizeIPsBefore() error = %v", err)
	}

	logs := exportAsJSON(t, repo, ExportOptions{Format: ExportFormatJSON, ActorSubject: "ops-admin"})
	if len(logs) != 1 {
		t.Fatalf("got %d entries, want 1", len(logs))
	}
	if logs[0].IPAddress != "198.51.100.0" {
		t.Errorf("exported IP = %q, want truncated 198.51.100.0", logs[0].IPAddress)
	}
}
