package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/mycine-gamification/internal/domain"
)

// MemRanking is an in-memory XP leaderboard
type MemRanking struct {
	mu     sync.Mutex
	scores map[string]int64
	names  map[string]string
}

// NewMemRanking returns an empty ranking
func NewMemRanking() *MemRanking {
	return &MemRanking{scores: map[string]int64{}, names: map[string]string{}}
}

func (r *MemRanking) SetXP(_ context.Context, userID string, totalXP int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[userID] = totalXP
	return nil
}

// sorted orders by XP descending, then by user id like a sorted set
func (r *MemRanking) sorted() []domain.LeaderboardEntry {
	ids := make([]string, 0, len(r.scores))
	for id := range r.scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if r.scores[ids[i]] != r.scores[ids[j]] {
			return r.scores[ids[i]] > r.scores[ids[j]]
		}
		return ids[i] > ids[j]
	})
	out := make([]domain.LeaderboardEntry, len(ids))
	for i, id := range ids {
		out[i] = domain.NewLeaderboardEntry(int64(i+1), id, r.scores[id])
	}
	return out
}

func (r *MemRanking) TopN(_ context.Context, n int) ([]domain.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (r *MemRanking) UserRank(_ context.Context, userID string) (*domain.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.sorted() {
		if e.UserID == userID {
			return &e, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *MemRanking) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.scores)), nil
}

func (r *MemRanking) CountAtLeast(_ context.Context, minXP int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.scores {
		if s >= minXP {
			n++
		}
	}
	return n, nil
}

func (r *MemRanking) Rebuild(_ context.Context, totals map[string]int64, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores = make(map[string]int64, len(totals))
	for id, xp := range totals {
		r.scores[id] = xp
	}
	return nil
}

func (r *MemRanking) SetDisplayName(_ context.Context, userID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[userID] = name
	return nil
}

func (r *MemRanking) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]string{}
	for _, id := range userIDs {
		if n, ok := r.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

// Score returns the cached XP of a user
func (r *MemRanking) Score(userID string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scores[userID]
	return s, ok
}
