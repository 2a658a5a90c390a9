package presence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

type memoryRepo struct {
	mu       sync.Mutex
	records  map[int64]time.Time
	users    map[int64][2]string
	creates  int
	touches  int
	writeErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{records: make(map[int64]time.Time), users: make(map[int64][2]string)}
}

func (m *memoryRepo) addUser(id int64, username, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = [2]string{username, email}
}

func (m *memoryRepo) Touch(ctx context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	if m.writeErr != nil {
		return m.writeErr
	}
	if _, ok := m.records[userID]; !ok {
		return ErrNotFound
	}
	m.records[userID] = at
	return nil
}

func (m *memoryRepo) Create(ctx context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.writeErr != nil {
		return m.writeErr
	}
	m.records[userID] = at
	return nil
}

// Get is a test helper; the tracker never reads single records.
func (m *memoryRepo) Get(ctx context.Context, userID int64) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.records[userID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{UserID: userID, LastSeen: at}, nil
}

func (m *memoryRepo) ListActivity(ctx context.Context) ([]Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Activity, 0, len(ids))
	for _, id := range ids {
		a := Activity{UserID: id, Username: m.users[id][0], Email: m.users[id][1]}
		if at, ok := m.records[id]; ok {
			at := at
			a.LastSeen = &at
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memoryRepo) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

var errStoreDown = errors.New("store unavailable")
