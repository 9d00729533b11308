package operator

import (
	"sync"

	"github.com/google/uuid"
)

// Repository defines the data operations the trust engine needs for
// operators. Entity CRUD beyond score persistence lives in external
// services; only the trust score field is written from here.
type Repository interface {
	// GetByID retrieves an operator by ID.
	// Returns ErrOperatorNotFound if the operator does not exist.
	GetByID(id string) (*Operator, error)

	// List returns all operators. Used by batch operations
	// (global correction, snapshot backfill).
	List() ([]*Operator, error)

	// PersistScore writes a recomputed trust score for an operator.
	// Returns ErrOperatorNotFound if the operator does not exist.
	PersistScore(id string, score int) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu        sync.RWMutex
	operators map[string]*Operator
	// Maintain insertion order so List is deterministic
	order []string
}

// NewInMemoryRepository creates a new in-memory operator repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		operators: make(map[string]*Operator),
	}
}

// Insert stores a new operator. Assigns a UUID when the ID is empty.
func (r *InMemoryRepository) Insert(op *Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op.ID == "" {
		op.ID = uuid.New().String()
	}

	copied := copyOperator(op)
	if _, exists := r.operators[op.ID]; !exists {
		r.order = append(r.order, op.ID)
	}
	r.operators[op.ID] = copied
	return nil
}

// GetByID retrieves an operator by ID.
func (r *InMemoryRepository) GetByID(id string) (*Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.operators[id]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return copyOperator(op), nil
}

// List returns all operators in insertion order.
func (r *InMemoryRepository) List() ([]*Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Operator, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, copyOperator(r.operators[id]))
	}
	return result, nil
}

// PersistScore writes a recomputed trust score for an operator.
func (r *InMemoryRepository) PersistScore(id string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.operators[id]
	if !ok {
		return ErrOperatorNotFound
	}
	op.TrustScore = score
	return nil
}

// copyOperator returns a deep copy to prevent external mutation.
func copyOperator(op *Operator) *Operator {
	copied := *op
	copied.Documents = append([]Document(nil), op.Documents...)
	copied.Badges = append([]string(nil), op.Badges...)
	copied.Restrictions = make([]Restriction, len(op.Restrictions))
	for i, res := range op.Restrictions {
		resCopy := res
		if res.ExpiresAt != nil {
			t := *res.ExpiresAt
			resCopy.ExpiresAt = &t
		}
		copied.Restrictions[i] = resCopy
	}
	return &copied
}
