package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/expense-tracker/apiserver/internal/storage"
	"github.com/expense-tracker/apiserver/internal/store"
	"github.com/expense-tracker/apiserver/types"
	"github.com/google/uuid"
)

type memoryUsers struct {
	mu    sync.Mutex
	users []types.User
	calls []string
}

func (m *memoryUsers) GetByID(ctx context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) GetByEmail(ctx context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "email")
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "username")
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := len(m.users)
	if offset >= total {
		return []types.User{}, total, nil
	}
	end := min(offset+limit, total)
	return append([]types.User(nil), m.users[offset:end]...), total, nil
}

func (m *memoryUsers) Create(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	m.users = append(m.users, user)
	return user, nil
}

type memoryExpenses struct {
	mu          sync.Mutex
	expenses    []types.Expense
	failInserts bool
}

func (m *memoryExpenses) Get(ctx context.Context, id string) (types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.expenses {
		if e.ID == id {
			return e, nil
		}
	}
	return types.Expense{}, store.ErrNotFound
}

func (m *memoryExpenses) ListAll(ctx context.Context) ([]types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.Expense(nil), m.expenses...), nil
}

func (m *memoryExpenses) List(ctx context.Context, q types.ExpenseQuery, offset, limit int) ([]types.Expense, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []types.Expense
	for _, e := range m.expenses {
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		if q.PaymentMethod != "" && string(e.PaymentMethod) != q.PaymentMethod {
			continue
		}
		if !q.StartDate.IsZero() && e.Date.Before(q.StartDate.Time) {
			continue
		}
		if !q.EndDate.IsZero() && e.Date.After(q.EndDate.Time) {
			continue
		}
		matched = append(matched, e)
	}

	if q.SortColumn() != "date" {
		return nil, 0, errors.New("memoryExpenses only sorts by date")
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Date.Equal(matched[j].Date.Time) {
			return matched[i].ID < matched[j].ID
		}
		if q.Descending {
			return matched[i].Date.After(matched[j].Date.Time)
		}
		return matched[i].Date.Before(matched[j].Date.Time)
	})

	total := len(matched)
	if offset >= total {
		return []types.Expense{}, total, nil
	}
	return matched[offset:min(offset+limit, total)], total, nil
}

func (m *memoryExpenses) Create(ctx context.Context, expense types.Expense) (types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expense.ID = uuid.NewString()
	m.expenses = append(m.expenses, expense)
	return expense, nil
}

func (m *memoryExpenses) CreateMany(ctx context.Context, expenses []types.Expense) ([]types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInserts {
		return nil, errors.New("connection reset")
	}
	inserted := make([]types.Expense, 0, len(expenses))
	for _, e := range expenses {
		e.ID = uuid.NewString()
		inserted = append(inserted, e)
	}
	m.expenses = append(m.expenses, inserted...)
	return inserted, nil
}

func (m *memoryExpenses) Update(ctx context.Context, expense types.Expense) (types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.expenses {
		if e.ID == expense.ID {
			m.expenses[i] = expense
			return expense, nil
		}
	}
	return types.Expense{}, store.ErrNotFound
}

func (m *memoryExpenses) Delete(ctx context.Context, id string) error {
	deleted, _ := m.DeleteMany(ctx, []string{id})
	if len(deleted) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (m *memoryExpenses) DeleteMany(ctx context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	remove := make(map[string]bool, len(ids))
	for _, id := range ids {
		remove[id] = true
	}
	kept := m.expenses[:0]
	deleted := []string{}
	for _, e := range m.expenses {
		if remove[e.ID] {
			deleted = append(deleted, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	m.expenses = kept
	return deleted, nil
}

type memoryArchive struct {
	uploads []storage.Upload
}

func (m *memoryArchive) Store(ctx context.Context, upload storage.Upload) (string, error) {
	m.uploads = append(m.uploads, upload)
	return "memory://" + upload.Key, nil
}

type recordedEvent struct {
	channel string
	data    []byte
	attrs   map[string]string
}

type memoryPublisher struct {
	events []recordedEvent
	err    error
}

func (m *memoryPublisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.events = append(m.events, recordedEvent{channel: channel, data: data, attrs: attrs})
	return "msg-" + strings.Repeat("x", len(m.events)), nil
}

type staticTokens struct{}

func (staticTokens) Issue(userID string) (string, time.Time, error) {
	return "token-for-" + userID, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}
