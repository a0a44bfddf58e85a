package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidflow-dev/vidflow/internal/models"
)

func receive(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestStore_InitialState(t *testing.T) {
	s := NewStore()
	snap := s.Get()
	assert.False(t, snap.Authenticated)
	assert.Nil(t, snap.User)
}

func TestStore_SubscribersSeeEveryTransitionInOrder(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()

	// current value first
	assert.Equal(t, Snapshot{}, receive(t, ch))

	// nobody reads while the transitions are applied
	alice := &models.User{ID: "1", Email: "alice@example.com"}
	bob := &models.User{ID: "2", Email: "bob@example.com"}
	s.SetAuthenticated(alice)
	s.SetAuthenticated(bob)
	s.Clear()
	s.Confirm()

	got := []Snapshot{receive(t, ch), receive(t, ch), receive(t, ch), receive(t, ch)}
	assert.Equal(t, "alice@example.com", got[0].User.Email)
	assert.Equal(t, "bob@example.com", got[1].User.Email)
	assert.Equal(t, Snapshot{}, got[2])
	assert.Equal(t, Snapshot{Authenticated: true}, got[3])
}

func TestStore_NoopTransitionsEmitNothing(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	defer cancel()
	receive(t, ch)

	s.Clear() // already empty
	s.Confirm()
	s.Confirm() // already authenticated
	s.SetAuthenticated(nil)

	assert.Equal(t, Snapshot{Authenticated: true}, receive(t, ch))

	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot %+v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_UserIsCopied(t *testing.T) {
	s := NewStore()
	user := &models.User{ID: "1", Email: "alice@example.com"}
	s.SetAuthenticated(user)

	user.Email = "mallory@example.com"
	assert.Equal(t, "alice@example.com", s.Get().User.Email)
}

func TestStore_CancelClosesChannel(t *testing.T) {
	s := NewStore()
	ch, cancel := s.Subscribe()
	receive(t, ch)

	cancel()
	cancel() // idempotent

	s.Confirm()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("channel was not closed")
	}
}

func TestStore_MultipleSubscribers(t *testing.T) {
	s := NewStore()
	a, cancelA := s.Subscribe()
	defer cancelA()
	b, cancelB := s.Subscribe()
	defer cancelB()
	receive(t, a)
	receive(t, b)

	s.SetAuthenticated(&models.User{ID: "1"})

	assert.True(t, receive(t, a).Authenticated)
	assert.True(t, receive(t, b).Authenticated)
}
