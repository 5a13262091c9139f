// Command stdio runs a tool server over standard input and output. Each
// request is one JSON line and each response comes back as one JSON line:
//
//	echo '{"id":"1","tool":"echo","arguments":{"text":"hi"}}' | go run .
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	aurora "github.com/KotDath/aurora-mcp"
	"github.com/KotDath/aurora-mcp/servers/demo"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	info := aurora.Info{Name: "aurora-stdio-example", Version: "0.1.0"}

	registry := aurora.NewToolRegistry()
	if err := demo.NewSuite(info, logger).RegisterAll(registry); err != nil {
		log.Fatal(err)
	}

	server := aurora.NewServer(info, registry, aurora.WithLogger(logger))
	server.Start()

	if err := aurora.NewStdIO(server, os.Stdin, os.Stdout).Listen(ctx); err != nil {
		log.Fatal(err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}
}
