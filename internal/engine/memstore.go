package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"ticket-trader/internal/models"
)

// MemoryStore is the in-process IntentStore. It backs tests and storeless
// deployments, and is the reference for the transition semantics the gorm
// store mirrors.
type MemoryStore struct {
	mu       sync.Mutex
	intents  map[string]*models.PurchaseIntent
	attempts map[string][]models.PurchaseAttempt
	seq      int64
	order    map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:  make(map[string]*models.PurchaseIntent),
		attempts: make(map[string][]models.PurchaseAttempt),
		order:    make(map[string]int64),
	}
}

func (s *MemoryStore) Insert(ctx context.Context, intent *models.PurchaseIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.intents {
		if existing.ListingID == intent.ListingID && existing.Active() {
			return &DuplicateIntentError{ListingID: intent.ListingID, ExistingIntentID: existing.ID}
		}
	}

	stored := *intent
	s.seq++
	s.order[intent.ID] = s.seq
	s.intents[intent.ID] = &stored
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.PurchaseIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *intent
	return &copied, nil
}

func (s *MemoryStore) Transition(ctx context.Context, id, from, to string, mutate func(*models.PurchaseIntent) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	intent, ok := s.intents[id]
	if !ok {
		return false, ErrNotFound
	}
	if intent.Status != from {
		return false, nil
	}

	if mutate != nil {
		if err := mutate(intent); err != nil {
			return false, err
		}
	}
	intent.Status = to
	intent.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) NextDue(ctx context.Context, now time.Time) (*models.PurchaseIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *models.PurchaseIntent
	for _, intent := range s.intents {
		if !intent.Due(now) {
			continue
		}
		if best == nil || s.before(intent, best) {
			best = intent
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

// before orders by priority rank desc, then enqueue order asc.
func (s *MemoryStore) before(a, b *models.PurchaseIntent) bool {
	ra, rb := models.PriorityRank(a.Priority), models.PriorityRank(b.Priority)
	if ra != rb {
		return ra > rb
	}
	return s.order[a.ID] < s.order[b.ID]
}

func (s *MemoryStore) ExpireOverdue(ctx context.Context, now time.Time) ([]*models.PurchaseIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*models.PurchaseIntent
	for _, intent := range s.intents {
		if intent.Status == models.StatusQueued && !intent.ExpiresAt.After(now) {
			intent.Status = models.StatusExpired
			intent.FailureReason = "intent expired before a purchase slot freed up"
			intent.UpdatedAt = now
			copied := *intent
			expired = append(expired, &copied)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return s.order[expired[i].ID] < s.order[expired[j].ID]
	})
	return expired, nil
}

func (s *MemoryStore) InsertAttempt(ctx context.Context, attempt *models.PurchaseAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts[attempt.IntentID] = append(s.attempts[attempt.IntentID], *attempt)
	return nil
}

func (s *MemoryStore) AttemptsByIntent(ctx context.Context, intentID string) ([]models.PurchaseAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.PurchaseAttempt, len(s.attempts[intentID]))
	copy(out, s.attempts[intentID])
	return out, nil
}
