// Command sse starts a tool server with the SSE transport on a local port,
// connects a client to it, and runs a few calls over the event stream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	aurora "github.com/KotDath/aurora-mcp"
	"github.com/KotDath/aurora-mcp/servers/demo"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	info := aurora.Info{Name: "aurora-sse-example", Version: "0.1.0"}

	registry := aurora.NewToolRegistry()
	if err := demo.NewSuite(info, logger).RegisterAll(registry); err != nil {
		log.Fatal(err)
	}

	server := aurora.NewServer(info, registry, aurora.WithLogger(logger))
	server.Start()

	transport := aurora.NewSSEServer(server, "/events")
	mux := http.NewServeMux()
	mux.Handle("/events", transport.HandleEvents())
	mux.Handle("/events/", transport.HandleMessage())

	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		log.Fatal(err)
	}
	httpServer := &http.Server{Handler: mux}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := aurora.NewSSEClient("http://"+ln.Addr().String(), "/events",
		aurora.WithClientLogger(logger))
	if err := client.Connect(ctx); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("connected with session %s\n", client.SessionID())

	calls := []struct {
		tool string
		args map[string]any
	}{
		{tool: "hello_world"},
		{tool: "echo", args: map[string]any{"text": "over the event stream"}},
		{tool: "list_tools"},
	}
	for _, call := range calls {
		resp, err := client.Call(ctx, call.tool, call.args)
		if err != nil {
			log.Fatal(err)
		}
		if !resp.OK {
			fmt.Printf("%s failed: %s: %s\n", call.tool, resp.Error.Kind, resp.Error.Message)
			continue
		}
		result, err := json.Marshal(resp.Result)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s -> %s\n", call.tool, result)
	}

	client.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
}
