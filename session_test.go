package aurora_test

import (
	"errors"
	"testing"
	"time"

	aurora "github.com/KotDath/aurora-mcp"
)

func TestSessionManagerCreateAndTouch(t *testing.T) {
	manager := aurora.NewSessionManager(discardLogger())

	sess := manager.Create(aurora.TransportHTTP, nil)
	if sess.ID == "" {
		t.Fatal("created session has no id")
	}
	if sess.Transport != aurora.TransportHTTP {
		t.Errorf("wrong transport. Got %q, want %q", sess.Transport, aurora.TransportHTTP)
	}

	got, ok := manager.Get(sess.ID)
	if !ok {
		t.Fatal("Get did not find the created session")
	}
	if got.ID != sess.ID {
		t.Errorf("Get returned wrong session. Got %q, want %q", got.ID, sess.ID)
	}

	before := sess.LastActivity()
	time.Sleep(5 * time.Millisecond)
	if err := manager.Touch(sess.ID); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if !sess.LastActivity().After(before) {
		t.Error("Touch did not advance LastActivity")
	}

	if manager.Len() != 1 {
		t.Errorf("wrong Len. Got %d, want 1", manager.Len())
	}
}

func TestSessionManagerTouchUnknownSession(t *testing.T) {
	manager := aurora.NewSessionManager(discardLogger())

	err := manager.Touch("no-such-session")
	if err == nil {
		t.Fatal("Touch of an unknown session succeeded")
	}
	if !errors.Is(err, aurora.ErrUnknownSession) {
		t.Errorf("Expected ErrUnknownSession, got %v", err)
	}
}

func TestSessionManagerDestroyRunsCloseCallbackOnce(t *testing.T) {
	manager := aurora.NewSessionManager(discardLogger())

	closed := 0
	sess := manager.Create(aurora.TransportSSE, func() { closed++ })

	if !manager.Destroy(sess.ID) {
		t.Fatal("Destroy reported the session as missing")
	}
	if closed != 1 {
		t.Fatalf("close callback ran %d times, want 1", closed)
	}

	// A second destroy finds nothing and must not rerun the callback.
	if manager.Destroy(sess.ID) {
		t.Error("second Destroy reported success")
	}
	if closed != 1 {
		t.Errorf("close callback ran %d times after double destroy, want 1", closed)
	}

	if _, ok := manager.Get(sess.ID); ok {
		t.Error("destroyed session is still visible")
	}
}

func TestSessionManagerReapDestroysOnlyIdleSessions(t *testing.T) {
	manager := aurora.NewSessionManager(discardLogger())

	idleClosed := make(chan struct{})
	idle := manager.Create(aurora.TransportSSE, func() { close(idleClosed) })
	busy := manager.Create(aurora.TransportSSE, nil)

	// Let both sessions age past the threshold, then revive one.
	time.Sleep(50 * time.Millisecond)
	if err := manager.Touch(busy.ID); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	reaped := manager.Reap(25 * time.Millisecond)
	if reaped != 1 {
		t.Fatalf("wrong reap count. Got %d, want 1", reaped)
	}

	select {
	case <-idleClosed:
	default:
		t.Error("reap did not run the idle session's close callback")
	}

	if _, ok := manager.Get(idle.ID); ok {
		t.Error("idle session survived the reap")
	}
	if _, ok := manager.Get(busy.ID); !ok {
		t.Error("recently touched session was reaped")
	}
}

func TestSessionManagerReapIsIdempotent(t *testing.T) {
	manager := aurora.NewSessionManager(discardLogger())

	manager.Create(aurora.TransportSSE, nil)
	manager.Create(aurora.TransportHTTP, nil)
	time.Sleep(20 * time.Millisecond)

	first := manager.Reap(10 * time.Millisecond)
	if first != 2 {
		t.Fatalf("first reap destroyed %d sessions, want 2", first)
	}

	// With no new activity, a second sweep has nothing left to destroy.
	second := manager.Reap(10 * time.Millisecond)
	if second != 0 {
		t.Errorf("second reap destroyed %d sessions, want 0", second)
	}

	if manager.Len() != 0 {
		t.Errorf("wrong Len after reaps. Got %d, want 0", manager.Len())
	}
}

func TestSessionManagerEnsureRebindsExistingSession(t *testing.T) {
	manager := aurora.NewSessionManager(discardLogger())

	firstClosed := 0
	sess := manager.Ensure("stable-id", aurora.TransportSSE, func() { firstClosed++ })
	if sess.ID != "stable-id" {
		t.Fatalf("wrong session id. Got %q, want %q", sess.ID, "stable-id")
	}
	if manager.Len() != 1 {
		t.Fatalf("wrong Len. Got %d, want 1", manager.Len())
	}

	// Reconnecting with the same id keeps the session but swaps the
	// resource being released on destroy.
	secondClosed := 0
	again := manager.Ensure("stable-id", aurora.TransportSSE, func() { secondClosed++ })
	if again != sess {
		t.Error("Ensure created a second session for the same id")
	}
	if manager.Len() != 1 {
		t.Errorf("wrong Len after reconnect. Got %d, want 1", manager.Len())
	}

	manager.Destroy("stable-id")
	if firstClosed != 0 {
		t.Error("stale close callback ran")
	}
	if secondClosed != 1 {
		t.Errorf("rebound close callback ran %d times, want 1", secondClosed)
	}
}

func TestSessionManagerDestroyAll(t *testing.T) {
	manager := aurora.NewSessionManager(discardLogger())

	closed := 0
	for i := 0; i < 3; i++ {
		manager.Create(aurora.TransportSSE, func() { closed++ })
	}

	destroyed := manager.DestroyAll()
	if destroyed != 3 {
		t.Errorf("wrong destroy count. Got %d, want 3", destroyed)
	}
	if closed != 3 {
		t.Errorf("close callbacks ran %d times, want 3", closed)
	}
	if manager.Len() != 0 {
		t.Errorf("wrong Len. Got %d, want 0", manager.Len())
	}
}
