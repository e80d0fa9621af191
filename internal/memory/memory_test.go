package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) FailureRecorded(ctx context.Context, businessID, experiment string) error {
	args := m.Called(ctx, businessID, experiment)
	return args.Error(0)
}

// brokenStore fails every call.
type brokenStore struct{ err error }

func (b brokenStore) FailedExperiments(context.Context, string) ([]string, error) { return nil, b.err }
func (b brokenStore) RecordFailure(context.Context, string, string) (bool, error) { return false, b.err }

func TestMemStore_UnknownBusinessIsEmpty(t *testing.T) {
	s := NewMemStore()
	names, err := s.FailedExperiments(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMemStore_RecordFailureIsIdempotent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	for _, tt := range []struct {
		business, name string
		added          bool
	}{
		{"coffee-hub", "Referral Program", true},
		{"coffee-hub", "Referral Program", false},
		{"coffee-hub", "Loyalty Punch Card", true},
		{"bakery", "Win-Back Campaign", true},
	} {
		added, err := s.RecordFailure(ctx, tt.business, tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.added, added, "%s/%s", tt.business, tt.name)
	}

	names, err := s.FailedExperiments(ctx, "coffee-hub")
	require.NoError(t, err)
	assert.Equal(t, []string{"Referral Program", "Loyalty Punch Card"}, names)

	names, err = s.FailedExperiments(ctx, "bakery")
	require.NoError(t, err)
	assert.Equal(t, []string{"Win-Back Campaign"}, names)
}

func TestMemStore_ReturnsCopy(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	_, err := s.RecordFailure(ctx, "b", "X")
	require.NoError(t, err)

	names, _ := s.FailedExperiments(ctx, "b")
	names[0] = "mutated"

	again, _ := s.FailedExperiments(ctx, "b")
	assert.Equal(t, []string{"X"}, again)
}

func TestMemStore_Validation(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	_, err := s.RecordFailure(ctx, "", "X")
	assert.ErrorIs(t, err, ErrEmptyBusinessID)
	_, err = s.RecordFailure(ctx, "b", "  ")
	assert.ErrorIs(t, err, ErrEmptyExperiment)
}

func TestMemStore_CanceledContext(t *testing.T) {
	s := NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.FailedExperiments(ctx, "b")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.RecordFailure(ctx, "b", "X")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemStore_Concurrent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.RecordFailure(ctx, "b", "Referral Program")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.FailedExperiments(ctx, "b")
		}()
	}
	wg.Wait()

	names, err := s.FailedExperiments(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"Referral Program"}, names)
}

func TestIsFailureStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"FAILED", true},
		{"failed", true},
		{"Canceled_Low_Impact", true},
		{" NO_IMPACT ", true},
		{"SUCCEEDED", false},
		{"RUNNING", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFailureStatus(tt.status))
		})
	}
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	assert.Error(t, err)
}

func TestService_RecordFailureNotifies(t *testing.T) {
	n := &mockNotifier{}
	n.On("FailureRecorded", mock.Anything, "coffee-hub", "Referral Program").Return(nil).Once()

	svc, err := NewService(NewMemStore(), n, zap.NewNop())
	require.NoError(t, err)

	rec, err := svc.RecordFailure(context.Background(), "coffee-hub", "Referral Program")
	require.NoError(t, err)
	assert.Equal(t, "coffee-hub", rec.BusinessID)
	assert.Equal(t, []string{"Referral Program"}, rec.FailedExperiments)
	n.AssertExpectations(t)
}

func TestService_NotifierErrorIsLoggedNotReturned(t *testing.T) {
	n := &mockNotifier{}
	n.On("FailureRecorded", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("nats down"))

	core, logs := observer.New(zap.WarnLevel)
	svc, err := NewService(NewMemStore(), n, zap.New(core))
	require.NoError(t, err)

	_, err = svc.RecordFailure(context.Background(), "b", "X")
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("failure notification not delivered").Len())
}

func TestService_Failures(t *testing.T) {
	svc, err := NewService(NewMemStore(), nil, nil)
	require.NoError(t, err)

	rec, err := svc.Failures(context.Background(), "fresh")
	require.NoError(t, err)
	assert.NotNil(t, rec.FailedExperiments)
	assert.Empty(t, rec.FailedExperiments)

	_, err = svc.Failures(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyBusinessID)
}

func TestService_StoreErrorsWrapped(t *testing.T) {
	boom := errors.New("disk full")
	svc, err := NewService(brokenStore{err: boom}, nil, nil)
	require.NoError(t, err)

	_, err = svc.Failures(context.Background(), "b")
	assert.ErrorIs(t, err, boom)

	_, err = svc.RecordFailure(context.Background(), "b", "X")
	assert.ErrorIs(t, err, boom)
}

func TestService_RepeatedFailureNotifiesOnce(t *testing.T) {
	n := &mockNotifier{}
	n.On("FailureRecorded", mock.Anything, "coffee-hub", "Referral Program").Return(nil).Once()

	core, logs := observer.New(zap.InfoLevel)
	svc, err := NewService(NewMemStore(), n, zap.New(core))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		rec, err := svc.RecordFailure(context.Background(), "coffee-hub", "Referral Program")
		require.NoError(t, err)
		assert.Equal(t, []string{"Referral Program"}, rec.FailedExperiments)
	}

	n.AssertExpectations(t)
	assert.Equal(t, 1, logs.FilterMessage("experiment recorded as failed").Len())
}

func TestService_RecordOutcome(t *testing.T) {
	tests := []struct {
		name       string
		out        Outcome
		wantNotify bool
	}{
		{"added", Outcome{BusinessID: "b", Experiment: "Win-Back Campaign", Status: StatusFailed, Added: true}, true},
		{"already in memory", Outcome{BusinessID: "b", Experiment: "Win-Back Campaign", Status: StatusNoImpact}, false},
		{"succeeded", Outcome{BusinessID: "b", Experiment: "Win-Back Campaign", Status: StatusSucceeded}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &mockNotifier{}
			if tt.wantNotify {
				n.On("FailureRecorded", mock.Anything, "b", "Win-Back Campaign").Return(nil).Once()
			}
			svc, err := NewService(NewMemStore(), n, nil)
			require.NoError(t, err)

			calls := 0
			got, err := svc.RecordOutcome(context.Background(), func(context.Context) (Outcome, error) {
				calls++
				return tt.out, nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.out, got)
			assert.Equal(t, 1, calls)
			n.AssertExpectations(t)
		})
	}
}

func TestService_RecordOutcomeWriteError(t *testing.T) {
	n := &mockNotifier{}
	svc, err := NewService(NewMemStore(), n, nil)
	require.NoError(t, err)

	boom := errors.New("constraint failed")
	_, err = svc.RecordOutcome(context.Background(), func(context.Context) (Outcome, error) {
		return Outcome{}, boom
	})
	assert.ErrorIs(t, err, boom)
	n.AssertNotCalled(t, "FailureRecorded", mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.RecordOutcome(context.Background(), nil)
	assert.Error(t, err)
}

func TestService_Closed(t *testing.T) {
	svc, err := NewService(NewMemStore(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	_, err = svc.Failures(context.Background(), "b")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = svc.RecordFailure(context.Background(), "b", "X")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = svc.RecordOutcome(context.Background(), func(context.Context) (Outcome, error) {
		t.Fatal("write ran on a closed service")
		return Outcome{}, nil
	})
	assert.ErrorIs(t, err, ErrClosed)
}
