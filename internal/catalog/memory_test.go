package catalog_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marquee-ott/marquee/internal/catalog"
	"github.com/marquee-ott/marquee/internal/shared"
)

type watchKey struct{ user, movie int64 }

type memoryRepo struct {
	mu        sync.Mutex
	movies    map[int64]catalog.Movie
	nextID    int64
	watchlist map[watchKey]time.Time
	history   []struct {
		user, movie int64
		at          time.Time
	}
	gets int
}

func newMemoryRepo(movies ...catalog.Movie) *memoryRepo {
	repo := &memoryRepo{movies: make(map[int64]catalog.Movie), watchlist: make(map[watchKey]time.Time)}
	for _, m := range movies {
		repo.movies[m.ID] = m
		if m.ID > repo.nextID {
			repo.nextID = m.ID
		}
	}
	return repo
}

func (r *memoryRepo) sorted() []catalog.Movie {
	out := make([]catalog.Movie, 0, len(r.movies))
	for _, m := range r.movies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]catalog.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	if limit <= 0 {
		return all, nil
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.movies), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (catalog.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	m, ok := r.movies[id]
	if !ok {
		return catalog.Movie{}, catalog.ErrMovieNotFound
	}
	return m, nil
}

func (r *memoryRepo) Latest(ctx context.Context, n int) ([]catalog.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.sorted()
	out := make([]catalog.Movie, 0, n)
	for i := len(all) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (r *memoryRepo) Create(ctx context.Context, m catalog.Movie) (catalog.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	m.ID = r.nextID
	r.movies[m.ID] = m
	return m, nil
}

func (r *memoryRepo) Update(ctx context.Context, m catalog.Movie) (catalog.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.movies[m.ID]; !ok {
		return catalog.Movie{}, catalog.ErrMovieNotFound
	}
	r.movies[m.ID] = m
	return m, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) (catalog.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.movies[id]
	if !ok {
		return catalog.Movie{}, catalog.ErrMovieNotFound
	}
	delete(r.movies, id)
	return m, nil
}

func (r *memoryRepo) AddToWatchlist(ctx context.Context, userID, movieID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.movies[movieID]; !ok {
		return catalog.ErrMovieNotFound
	}
	if _, ok := r.watchlist[watchKey{userID, movieID}]; !ok {
		r.watchlist[watchKey{userID, movieID}] = at
	}
	return nil
}

func (r *memoryRepo) RemoveFromWatchlist(ctx context.Context, userID, movieID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watchlist, watchKey{userID, movieID})
	return nil
}

func (r *memoryRepo) ListWatchlist(ctx context.Context, userID int64) ([]catalog.Movie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.Movie
	for _, m := range r.sorted() {
		if _, ok := r.watchlist[watchKey{userID, m.ID}]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) RecordView(ctx context.Context, userID, movieID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.movies[movieID]
	if !ok {
		return catalog.ErrMovieNotFound
	}
	m.ViewCount++
	r.movies[movieID] = m
	r.history = append(r.history, struct {
		user, movie int64
		at          time.Time
	}{userID, movieID, at})
	return nil
}

func (r *memoryRepo) ListHistory(ctx context.Context, userID int64, limit int) ([]catalog.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []catalog.HistoryEntry
	for i := len(r.history) - 1; i >= 0 && len(out) < limit; i-- {
		h := r.history[i]
		if h.user == userID {
			out = append(out, catalog.HistoryEntry{Movie: r.movies[h.movie], ViewedAt: h.at})
		}
	}
	return out, nil
}

type recordingPurger struct {
	mu      sync.Mutex
	reasons []string
	keys    []string
}

func (p *recordingPurger) PurgeMedia(ctx context.Context, reason string, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		if k != "" {
			p.keys = append(p.keys, k)
		}
	}
	p.reasons = append(p.reasons, reason)
	return nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

var _ catalog.Repository = (*memoryRepo)(nil)
