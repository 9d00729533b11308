package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for audit log operations.
type Repository interface {
	// LogAccess records an access event to the audit log.
	// Returns the created audit log entry.
	LogAccess(entry LogEntry) (*AuditLog, error)

	// QueryByEntity retrieves audit logs for a specific entity, sorted by time (newest first).
	// Limit specifies the maximum number of entries to return (0 = no limit).
	QueryByEntity(entityType, entityID string, limit int) ([]*AuditLog, error)

	// QueryByActor retrieves audit logs for a specific actor, sorted by time (newest first).
	// Limit specifies the maximum number of entries to return (0 = no limit).
	QueryByActor(actorSubject string, limit int) ([]*AuditLog, error)

	// GetLastHash returns the hash of the most recent log entry, or empty
	// string if the log is empty. Used to extend the tamper-detection chain.
	GetLastHash() (string, error)

	// VerifyHashChain recomputes the hash chain from the first entry and
	// reports whether any stored entry has been tampered with.
	VerifyHashChain() (bool, error)
}

// hashLog computes the SHA-256 hash of a log entry for chain linking.
func hashLog(log *AuditLog) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%d|%s",
		log.ID,
		log.ActorSubject,
		log.EntityType,
		log.EntityID,
		log.Action,
		log.Outcome,
		log.CreatedAt.UnixNano(),
		log.PreviousHash,
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu   sync.RWMutex
	logs map[string]*AuditLog
	// Maintain insertion order for queries
	order []string
	// Hash of the most recent entry, extends the tamper-detection chain
	lastHash string
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		logs:  make(map[string]*AuditLog),
		order: make([]string, 0),
	}
}

// LogAccess records an access event to the audit log.
func (r *InMemoryRepository) LogAccess(entry LogEntry) (*AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := entry.Outcome
	if outcome == "" {
		outcome = OutcomeSuccess
	}

	log := &AuditLog{
		ID:           uuid.New().String(),
		ActorSubject: entry.ActorSubject,
		EntityType:   entry.EntityType,
		EntityID:     entry.EntityID,
		Action:       entry.Action,
		Outcome:      outcome,
		CreatedAt:    time.Now().UTC(),
		RequestID:    entry.RequestID,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		PreviousHash: r.lastHash,
	}

	r.logs[log.ID] = log
	r.order = append(r.order, log.ID)
	r.lastHash = hashLog(log)

	// Return a copy to prevent external modification
	logCopy := *log
	return &logCopy, nil
}

// QueryByEntity retrieves audit logs for a specific entity, sorted by time (newest first).
func (r *InMemoryRepository) QueryByEntity(entityType, entityID string, limit int) ([]*AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*AuditLog

	// Iterate in reverse order (newest first)
	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		log := r.logs[id]

		if log.EntityType == entityType && log.EntityID == entityID {
			// Create a copy to prevent external modification
			logCopy := *log
			results = append(results, &logCopy)

			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}

	return results, nil
}

// QueryByActor retrieves audit logs for a specific actor, sorted by time (newest first).
func (r *InMemoryRepository) QueryByActor(actorSubject string, limit int) ([]*AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*AuditLog

	// Iterate in reverse order (newest first)
	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		log := r.logs[id]

		if log.ActorSubject == actorSubject {
			// Create a copy to prevent external modification
			logCopy := *log
			results = append(results, &logCopy)

			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}

	return results, nil
}

// GetLastHash returns the hash of the most recent log entry.
func (r *InMemoryRepository) GetLastHash() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastHash, nil
}

// VerifyHashChain recomputes the chain from the first entry and checks that
// each entry links to its predecessor's hash.
func (r *InMemoryRepository) VerifyHashChain() (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prev := ""
	for _, id := range r.order {
		log := r.logs[id]
		if log.PreviousHash != prev {
			return false, nil
		}
		prev = hashLog(log)
	}
	return prev == r.lastHash, nil
}

// CountUnanonymizedIPs returns how many entries created before cutoff still
// carry a full IP address.
func (r *InMemoryRepository) CountUnanonymizedIPs(cutoff time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, id := range r.order {
		if anonymizable(r.logs[id], cutoff) {
			count++
		}
	}
	return count, nil
}

// AnonymizeIPsBefore truncates the IP address of up to limit entries created
// before cutoff that still carry a full address, and stamps IPAnonymizedAt.
// The IP address is not part of the hash chain, so anonymization never
// invalidates tamper detection. Returns the number of entries rewritten;
// limit <= 0 means no limit.
func (r *InMemoryRepository) AnonymizeIPsBefore(cutoff time.Time, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	count := 0
	for _, id := range r.order {
		log := r.logs[id]
		if !anonymizable(log, cutoff) {
			continue
		}
		log.IPAddress = AnonymizeIP(log.IPAddress)
		stamped := now
		log.IPAnonymizedAt = &stamped
		count++
		if limit > 0 && count >= limit {
			break
		}
	}
	return count, nil
}

func anonymizable(log *AuditLog, cutoff time.Time) bool {
	return log.IPAddress != "" && log.IPAnonymizedAt == nil && log.CreatedAt.Before(cutoff)
}
