package aurora_test

import (
	"context"
	"testing"
	"time"

	aurora "github.com/KotDath/aurora-mcp"
)

func sleepTool(name string, d time.Duration) aurora.Tool {
	return aurora.Tool{
		Name:        name,
		Description: "Sleeps before answering.",
		Handler: func(ctx context.Context, _ map[string]any) (any, error) {
			select {
			case <-time.After(d):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

func TestServerStartFreezesRegistry(t *testing.T) {
	server := newEchoServer(t)

	err := server.Registry().Register(aurora.Tool{Name: "late", Handler: nopHandler})
	if err == nil {
		t.Fatal("registration after Start succeeded")
	}

	// A repeated Start is harmless and the registry stays readable.
	server.Start()
	if _, ok := server.Registry().Lookup("echo"); !ok {
		t.Error("registered tool disappeared after Start")
	}
}

func TestServerReaperDestroysIdleSessions(t *testing.T) {
	server := newEchoServer(t,
		aurora.WithIdleTimeout(10*time.Millisecond),
		aurora.WithReapInterval(10*time.Millisecond))

	server.Sessions().Create(aurora.TransportHTTP, nil)
	server.Sessions().Create(aurora.TransportHTTP, nil)

	deadline := time.Now().Add(2 * time.Second)
	for server.Sessions().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("reaper never swept the idle sessions, %d left", server.Sessions().Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerShutdownWaitsForInflightRequests(t *testing.T) {
	server := newToolServer(t, []aurora.Tool{sleepTool("slow", 100*time.Millisecond)})

	respCh := make(chan aurora.Response, 1)
	go func() {
		respCh <- server.Dispatch(context.Background(), aurora.Request{ID: "1", Tool: "slow"})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	// By the time Shutdown returns the in-flight call must have finished.
	select {
	case resp := <-respCh:
		if !resp.OK {
			t.Fatalf("in-flight call failed: %+v", resp.Error)
		}
		if resp.Result != "done" {
			t.Errorf("wrong result. Got %v, want %q", resp.Result, "done")
		}
	default:
		t.Fatal("Shutdown returned before the in-flight call completed")
	}
}

func TestServerShutdownGracePeriodExpires(t *testing.T) {
	server := newToolServer(t, []aurora.Tool{sleepTool("slow", 200*time.Millisecond)})

	respCh := make(chan aurora.Response, 1)
	go func() {
		respCh <- server.Dispatch(context.Background(), aurora.Request{ID: "1", Tool: "slow"})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("Shutdown outlived its grace period: took %s", elapsed)
	}
}

func TestServerShutdownDestroysSessions(t *testing.T) {
	server := newEchoServer(t)

	server.Sessions().Create(aurora.TransportSSE, nil)
	server.Sessions().Create(aurora.TransportHTTP, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	if n := server.Sessions().Len(); n != 0 {
		t.Errorf("sessions survived shutdown. Got %d, want 0", n)
	}
}

func TestServerShutdownIsIdempotent(t *testing.T) {
	server := newEchoServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown failed: %v", err)
	}
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("second Shutdown failed: %v", err)
	}
}
