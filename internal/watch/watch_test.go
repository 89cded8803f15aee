package watch

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// ChannelService
// ---------------------------------------------------------------------------

func TestChannelService_AddAssignsSequentialIDs(t *testing.T) {
	s := NewChannelService(4)
	defer s.Close()

	id1, err := s.Add("/tmp/a")
	require.NoError(t, err)
	id2, err := s.Add("/tmp/b")
	require.NoError(t, err)

	assert.Equal(t, ID(1), id1)
	assert.Equal(t, ID(2), id2)

	got, ok := s.IDFor("/tmp/a")
	require.True(t, ok)
	assert.Equal(t, id1, got)

	_, ok = s.IDFor("/tmp/unknown")
	assert.False(t, ok)
}

func TestChannelService_AccessDeliversEvent(t *testing.T) {
	s := NewChannelService(4)
	defer s.Close()

	id, err := s.Add("/tmp/status")
	require.NoError(t, err)

	require.NoError(t, s.Access("/tmp/status"))

	select {
	case ev := <-s.Events():
		assert.Equal(t, id, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestChannelService_AccessUnknownPath(t *testing.T) {
	s := NewChannelService(1)
	defer s.Close()

	err := s.Access("/tmp/never-added")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no watch installed")
}

func TestChannelService_Fail(t *testing.T) {
	s := NewChannelService(1)
	defer s.Close()

	s.Fail(fmt.Errorf("queue overflow"))

	select {
	case err := <-s.Errors():
		assert.ErrorContains(t, err, "queue overflow")
	case <-time.After(time.Second):
		t.Fatal("no error delivered")
	}
}

func TestChannelService_CloseEndsStreamAndRejectsAdd(t *testing.T) {
	s := NewChannelService(1)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	_, ok := <-s.Events()
	assert.False(t, ok, "events channel should be closed")

	_, err := s.Add("/tmp/late")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Platform service
// ---------------------------------------------------------------------------

func TestNew_AddUnreadablePath(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Skipf("platform service unavailable: %v", err)
	}
	defer s.Close()

	_, err = s.Add("/nonexistent/path/12345")
	assert.Error(t, err)
}

func TestNew_CloseStopsEventStream(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Skipf("platform service unavailable: %v", err)
	}

	require.NoError(t, s.Close())

	select {
	case _, ok := <-s.Events():
		assert.False(t, ok, "events channel should close after Close")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel did not close")
	}
}
