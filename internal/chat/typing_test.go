package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTyping_PeerObservesStartAndStop(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")

	alice := NewTyping(env.transport, newTestSession(t, env.store, "a"))
	bob := NewTyping(env.transport, newTestSession(t, env.store, "b"))
	require.NoError(t, alice.Activate("c1"))
	require.NoError(t, bob.Activate("c1"))
	defer alice.Deactivate()
	defer bob.Deactivate()

	alice.NotifyInput("Alice")

	typing := bob.TypingUsers()
	require.Len(t, typing, 1)
	assert.Equal(t, "a", typing[0].UserID)
	assert.Equal(t, "Alice", typing[0].DisplayName)

	// Alice never sees herself in the typing list
	assert.Empty(t, alice.TypingUsers())

	alice.Stop()
	assert.Empty(t, bob.TypingUsers())
}

func TestTyping_InactivityTimeoutWithdraws(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")

	alice := NewTyping(env.transport, newTestSession(t, env.store, "a"))
	alice.timeout = 30 * time.Millisecond
	bob := NewTyping(env.transport, newTestSession(t, env.store, "b"))
	require.NoError(t, alice.Activate("c1"))
	require.NoError(t, bob.Activate("c1"))
	defer alice.Deactivate()
	defer bob.Deactivate()

	alice.NotifyInput("Alice")
	require.Len(t, bob.TypingUsers(), 1)

	// No further input: the state is withdrawn without an explicit stop
	assert.Eventually(t, func() bool {
		return len(bob.TypingUsers()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestTyping_InputReArmsTimer(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")

	alice := NewTyping(env.transport, newTestSession(t, env.store, "a"))
	alice.timeout = 60 * time.Millisecond
	bob := NewTyping(env.transport, newTestSession(t, env.store, "b"))
	require.NoError(t, alice.Activate("c1"))
	require.NoError(t, bob.Activate("c1"))
	defer alice.Deactivate()
	defer bob.Deactivate()

	alice.NotifyInput("Alice")
	time.Sleep(35 * time.Millisecond)
	alice.NotifyInput("Alice")
	time.Sleep(35 * time.Millisecond)

	// Still typing: the second keystroke re-armed the timer
	assert.Len(t, bob.TypingUsers(), 1)
}

func TestTyping_SwitchingConversationClosesChannel(t *testing.T) {
	env := setupEnv(t)
	env.seedProfile(t, "a", "Alice")
	env.seedProfile(t, "b", "Bob")

	alice := NewTyping(env.transport, newTestSession(t, env.store, "a"))
	bob := NewTyping(env.transport, newTestSession(t, env.store, "b"))
	require.NoError(t, alice.Activate("c1"))
	require.NoError(t, bob.Activate("c1"))
	defer alice.Deactivate()
	defer bob.Deactivate()

	alice.NotifyInput("Alice")
	require.Len(t, bob.TypingUsers(), 1)

	// Alice switches away; her typing entry disappears for peers on c1
	require.NoError(t, alice.Activate("c2"))
	assert.Empty(t, bob.TypingUsers())
}
