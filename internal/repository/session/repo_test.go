package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/db"
	"github.com/kailas-cloud/tutorbot/internal/domain"
	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
)

var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

// mockStore is an in-memory KV implementing the consumer interface.
type mockStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestRepo_SaveGet(t *testing.T) {
	ms := newMockStore()
	repo := New(ms, "tutorbot:", 6*time.Hour)
	ctx := context.Background()

	s := domsession.New(domsession.ModeSpeak, testNow).
		Append(2, testNow, domain.Message{Role: domain.RoleUser, Content: "hi"})
	if err := repo.Save(ctx, 42, s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ms.ttls["tutorbot:session:42"] != 6*time.Hour {
		t.Errorf("ttl = %v, want 6h", ms.ttls["tutorbot:session:42"])
	}

	got, err := repo.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Mode() != domsession.ModeSpeak {
		t.Errorf("Mode() = %q, want speak", got.Mode())
	}
	if h := got.History(); len(h) != 1 || h[0].Content != "hi" {
		t.Errorf("History() = %+v", h)
	}
}

func TestRepo_GetMissing(t *testing.T) {
	repo := New(newMockStore(), "tutorbot:", time.Hour)
	_, err := repo.Get(context.Background(), 1)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_GetStoreError(t *testing.T) {
	ms := newMockStore()
	ms.getErr = errors.New("connection refused")
	repo := New(ms, "tutorbot:", time.Hour)

	_, err := repo.Get(context.Background(), 1)
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRepo_GetCorrupt(t *testing.T) {
	ms := newMockStore()
	ms.data["tutorbot:session:1"] = []byte(`{"mode":"dance"}`)
	repo := New(ms, "tutorbot:", time.Hour)

	if _, err := repo.Get(context.Background(), 1); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestRepo_Delete(t *testing.T) {
	ms := newMockStore()
	repo := New(ms, "tutorbot:", time.Hour)
	ctx := context.Background()

	_ = repo.Save(ctx, 1, domsession.New(domsession.ModeChat, testNow))
	if err := repo.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryRepo_Expiry(t *testing.T) {
	now := testNow
	repo := NewMemory(time.Hour, func() time.Time { return now })
	ctx := context.Background()

	_ = repo.Save(ctx, 1, domsession.New(domsession.ModeTranslate, testNow))
	if _, err := repo.Get(ctx, 1); err != nil {
		t.Fatalf("Get: %v", err)
	}

	now = testNow.Add(2 * time.Hour)
	if _, err := repo.Get(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
