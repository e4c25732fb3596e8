package periods

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mu    sync.Mutex
	locks map[[2]int]Lock

	insertErr error
	deleteErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{locks: make(map[[2]int]Lock)}
}

func (m *mockRepo) Insert(ctx context.Context, year, month int, note string, closedAt time.Time) (Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return Lock{}, m.insertErr
	}
	key := [2]int{year, month}
	if _, ok := m.locks[key]; ok {
		return Lock{}, ErrAlreadyLocked
	}
	lock := Lock{Year: year, Month: month, ClosedAt: closedAt, Note: note}
	m.locks[key] = lock
	return lock, nil
}

func (m *mockRepo) Delete(ctx context.Context, year, month int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	key := [2]int{year, month}
	if _, ok := m.locks[key]; !ok {
		return ErrNotLocked
	}
	delete(m.locks, key)
	return nil
}

func (m *mockRepo) Exists(ctx context.Context, year, month int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[[2]int{year, month}]
	return ok, nil
}

func (m *mockRepo) Find(ctx context.Context, year, month int) (*Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[[2]int{year, month}]; ok {
		return &l, nil
	}
	return nil, nil
}

func (m *mockRepo) List(ctx context.Context, year *int) ([]Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Lock
	for _, l := range m.locks {
		if year == nil || l.Year == *year {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockInvalidator struct {
	mu      sync.Mutex
	calls   [][2]int
	err     error
}

func (m *mockInvalidator) Invalidate(ctx context.Context, year, month int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, [2]int{year, month})
	return nil
}

type mockEnqueuer struct {
	mu    sync.Mutex
	calls [][2]int
	err   error
}

func (m *mockEnqueuer) EnqueueSummaryWarmup(ctx context.Context, year, month int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, [2]int{year, month})
	return nil
}

func TestCloseThenCloseAgain(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil, nil)

	lock, err := svc.Close(context.Background(), 2026, 2, "month end")
	require.NoError(t, err)
	assert.Equal(t, 2026, lock.Year)
	assert.Equal(t, 2, lock.Month)
	assert.Equal(t, "month end", lock.Note)

	_, err = svc.Close(context.Background(), 2026, 2, "")
	assert.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestCloseExclusivityUnderConcurrency(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil, nil)

	const n = 20
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Close(context.Background(), 2026, 3, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrAlreadyLocked):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, n-1, conflicted)
}

func TestCloseValidatesPeriod(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil, nil)

	_, err := svc.Close(context.Background(), 2026, 13, "")
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.Close(context.Background(), 1890, 5, "")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestCloseEnqueuesWarmup(t *testing.T) {
	enq := &mockEnqueuer{}
	svc := NewService(newMockRepo(), nil, enq, nil)

	_, err := svc.Close(context.Background(), 2026, 2, "")
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{2026, 2}}, enq.calls)
}

func TestCloseSucceedsWhenWarmupEnqueueFails(t *testing.T) {
	enq := &mockEnqueuer{err: errors.New("redis down")}
	svc := NewService(newMockRepo(), nil, enq, nil)

	_, err := svc.Close(context.Background(), 2026, 2, "")
	assert.NoError(t, err)
}

func TestReopenInvalidatesSnapshot(t *testing.T) {
	repo := newMockRepo()
	inv := &mockInvalidator{}
	svc := NewService(repo, inv, nil, nil)

	_, err := svc.Close(context.Background(), 2026, 2, "")
	require.NoError(t, err)

	require.NoError(t, svc.Reopen(context.Background(), 2026, 2))
	assert.Equal(t, [][2]int{{2026, 2}}, inv.calls)

	locked, err := svc.IsLocked(context.Background(), 2026, 2)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestReopenNotLocked(t *testing.T) {
	svc := NewService(newMockRepo(), &mockInvalidator{}, nil, nil)
	assert.ErrorIs(t, svc.Reopen(context.Background(), 2026, 2), ErrNotLocked)
}

func TestReopenKeepsLockWhenInvalidationFails(t *testing.T) {
	repo := newMockRepo()
	inv := &mockInvalidator{err: errors.New("cache unavailable")}
	svc := NewService(repo, inv, nil, nil)

	_, err := svc.Close(context.Background(), 2026, 2, "")
	require.NoError(t, err)

	err = svc.Reopen(context.Background(), 2026, 2)
	require.Error(t, err)

	locked, err := svc.IsLocked(context.Background(), 2026, 2)
	require.NoError(t, err)
	assert.True(t, locked, "lock must survive a failed snapshot invalidation")
}

func TestClosedErrorMessageNamesPeriod(t *testing.T) {
	err := &ClosedError{Year: 2026, Month: 2}
	assert.Contains(t, err.Error(), "2/2026")
}

func TestPeriodOf(t *testing.T) {
	y, m := PeriodOf(time.Date(2026, time.February, 15, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, 2026, y)
	assert.Equal(t, 2, m)
}
