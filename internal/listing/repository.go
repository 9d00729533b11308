package listing

import (
	"sync"

	"github.com/google/uuid"

	"github.com/veridex/listrank/internal/boost"
)

// Repository defines the data operations the ranking and trust engines need
// for listings. Entity CRUD beyond score persistence lives in external
// services.
type Repository interface {
	// GetByID retrieves a listing by ID.
	// Returns ErrListingNotFound if the listing does not exist.
	GetByID(id string) (*Listing, error)

	// ListPublished returns all published listings, the candidate set for
	// discovery ranking.
	ListPublished() ([]*Listing, error)

	// PersistScore writes a recomputed completeness score for a listing.
	// Returns ErrListingNotFound if the listing does not exist.
	PersistScore(id string, score int) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	listings map[string]*Listing
	// Maintain insertion order so ListPublished is deterministic
	order []string
}

// NewInMemoryRepository creates a new in-memory listing repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		listings: make(map[string]*Listing),
	}
}

// Insert stores a new listing. Assigns a UUID when the ID is empty.
func (r *InMemoryRepository) Insert(l *Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.New().String()
	}

	if _, exists := r.listings[l.ID]; !exists {
		r.order = append(r.order, l.ID)
	}
	r.listings[l.ID] = copyListing(l)
	return nil
}

// GetByID retrieves a listing by ID.
func (r *InMemoryRepository) GetByID(id string) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return copyListing(l), nil
}

// ListPublished returns all published listings in insertion order.
func (r *InMemoryRepository) ListPublished() ([]*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Listing
	for _, id := range r.order {
		if l := r.listings[id]; l.Status == StatusPublished {
			result = append(result, copyListing(l))
		}
	}
	return result, nil
}

// PersistScore writes a recomputed completeness score for a listing.
func (r *InMemoryRepository) PersistScore(id string, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	l.TrustScore = score
	return nil
}

// copyListing returns a deep copy to prevent external mutation.
func copyListing(l *Listing) *Listing {
	copied := *l
	copied.ActiveBoosts = append([]boost.Boost(nil), l.ActiveBoosts...)
	copied.Documents = append([]Document(nil), l.Documents...)
	return &copied
}
