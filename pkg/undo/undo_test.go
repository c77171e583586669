package undo_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/bahn/pkg/undo"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) HeadID(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	return args.String(0), args.Error(1)
}

func (m *mockBackend) ResetSoft(ctx context.Context, n int) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockBackend) ResetHard(ctx context.Context, n int) error {
	return m.Called(ctx, n).Error(0)
}

func TestUndo_Soft(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{}
	backend.On("HeadID", mock.Anything).Return("c3", nil).Once()
	backend.On("ResetSoft", mock.Anything, 2).Return(nil).Once()

	session := undo.NewSession("c1", "c2", "c3")

	removed, err := undo.NewManager(backend, session, nil).Undo(context.Background(), 2, undo.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c2"}, removed)
	assert.Equal(t, []string{"c1"}, session.IDs())

	backend.AssertExpectations(t)
	backend.AssertNotCalled(t, "ResetHard", mock.Anything, mock.Anything)
}

func TestPreview_LeavesRepositoryAndSession(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{}
	backend.On("HeadID", mock.Anything).Return("c3", nil).Twice()

	session := undo.NewSession("c1", "c2", "c3")
	manager := undo.NewManager(backend, session, nil)

	ids, err := manager.Preview(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c3", "c2"}, ids)
	assert.Equal(t, []string{"c1", "c2", "c3"}, session.IDs())

	_, err = manager.Preview(context.Background(), 4)
	require.ErrorIs(t, err, undo.ErrUndoRange)

	_, err = manager.Preview(context.Background(), 3)
	require.NoError(t, err)

	backend.AssertExpectations(t)
	backend.AssertNotCalled(t, "ResetSoft", mock.Anything, mock.Anything)
	backend.AssertNotCalled(t, "ResetHard", mock.Anything, mock.Anything)
}

func TestUndo_Hard(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{}
	backend.On("HeadID", mock.Anything).Return("c1", nil).Once()
	backend.On("ResetHard", mock.Anything, 1).Return(nil).Once()

	session := undo.NewSession("c1")

	removed, err := undo.NewManager(backend, session, nil).Undo(context.Background(), 1, undo.Options{Hard: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, removed)
	assert.Zero(t, session.Len())

	backend.AssertExpectations(t)
}

func TestUndo_OutOfRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int
		ids  []string
	}{
		{name: "zero", n: 0, ids: []string{"c1"}},
		{name: "negative", n: -2, ids: []string{"c1"}},
		{name: "more than session", n: 3, ids: []string{"c1", "c2"}},
		{name: "empty session", n: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			backend := &mockBackend{}
			session := undo.NewSession(tt.ids...)

			_, err := undo.NewManager(backend, session, nil).Undo(context.Background(), tt.n, undo.Options{})
			require.ErrorIs(t, err, undo.ErrUndoRange)

			var rangeErr *undo.UndoRangeError
			require.ErrorAs(t, err, &rangeErr)
			assert.Equal(t, tt.n, rangeErr.Requested)
			assert.Equal(t, len(tt.ids), rangeErr.Available)
			assert.Equal(t, len(tt.ids), session.Len())

			backend.AssertNotCalled(t, "HeadID", mock.Anything)
		})
	}
}

func TestUndo_HeadMoved(t *testing.T) {
	t.Parallel()

	backend := &mockBackend{}
	backend.On("HeadID", mock.Anything).Return("0123456789abcdef", nil).Once()

	session := undo.NewSession("c1", "c2")

	_, err := undo.NewManager(backend, session, nil).Undo(context.Background(), 1, undo.Options{})
	require.ErrorIs(t, err, undo.ErrHeadMoved)
	assert.Contains(t, err.Error(), "0123456")
	assert.Equal(t, 2, session.Len())

	backend.AssertNotCalled(t, "ResetSoft", mock.Anything, mock.Anything)
}

func TestUndo_ResetFailureKeepsSession(t *testing.T) {
	t.Parallel()

	failure := errors.New("index locked")

	backend := &mockBackend{}
	backend.On("HeadID", mock.Anything).Return("c2", nil).Once()
	backend.On("ResetSoft", mock.Anything, 1).Return(failure).Once()

	session := undo.NewSession("c1", "c2")

	_, err := undo.NewManager(backend, session, nil).Undo(context.Background(), 1, undo.Options{})
	require.ErrorIs(t, err, failure)
	assert.Equal(t, []string{"c1", "c2"}, session.IDs())
}

func TestSession_ConcurrentRecord(t *testing.T) {
	t.Parallel()

	session := undo.NewSession()

	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			session.Record("c")
		}()
	}

	wg.Wait()

	assert.Equal(t, 20, session.Len())
}

func TestNewSession_CopiesInput(t *testing.T) {
	t.Parallel()

	ids := []string{"c1", "c2"}
	session := undo.NewSession(ids...)
	ids[0] = "changed"

	assert.Equal(t, []string{"c1", "c2"}, session.IDs())
}
