package user

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/db"
	domuser "github.com/kailas-cloud/tutorbot/internal/domain/user"
)

const testPrefix = "tutorbot:"

var testNow = time.Date(2025, 4, 1, 15, 0, 0, 0, time.UTC)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn  func(ctx context.Context, key string) (map[string]string, error)
	scanFn     func(ctx context.Context, pattern string) ([]string, error)
	runFn      func(ctx context.Context, script *db.Script, keys []string, args ...string) (int64, error)
	runMultiFn func(ctx context.Context, script *db.Script, calls []db.ScriptCall) ([]int64, error)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func (m *mockStore) Run(ctx context.Context, script *db.Script, keys []string, args ...string) (int64, error) {
	if m.runFn != nil {
		return m.runFn(ctx, script, keys, args...)
	}
	return 0, nil
}

func (m *mockStore) RunMulti(ctx context.Context, script *db.Script, calls []db.ScriptCall) ([]int64, error) {
	if m.runMultiFn != nil {
		return m.runMultiFn(ctx, script, calls)
	}
	return make([]int64, len(calls)), nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, testPrefix), ms
}

func testUser(t *testing.T) domuser.User {
	t.Helper()
	u, err := domuser.New(42, domuser.Meta{DisplayName: "Ali", Handle: "ali"}, 10, testNow)
	if err != nil {
		t.Fatalf("domuser.New: %v", err)
	}
	return u
}
