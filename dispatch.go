package aurora

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// errHandlerPanic is the sanitized message exposed when a handler panics. The
// panic value itself only reaches the server log.
var errHandlerPanic = errors.New("tool handler failed")

// Dispatcher resolves canonical requests against the registry and runs tool
// handlers under a hard wall-clock deadline. It holds no mutable state and is
// safe for concurrent use.
type Dispatcher struct {
	registry *ToolRegistry
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry. A non-positive
// timeout falls back to the default request timeout.
func NewDispatcher(registry *ToolRegistry, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		timeout:  timeout,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

type handlerResult struct {
	result any
	err    error
}

// Dispatch runs one request to completion and always returns a well-formed
// Response: unknown tools, invalid arguments, deadline overruns, handler
// errors, and handler panics all surface as failure responses, never as
// faults. A handler that overruns the deadline keeps running in its own
// goroutine; its eventual result is logged and discarded.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	tool, ok := d.registry.Lookup(req.Tool)
	if !ok {
		return newErrorResponse(req.ID, ErrorKindUnknownTool,
			fmt.Sprintf("tool %q is not registered", req.Tool))
	}

	if err := ValidateArguments(ctx, tool, req.Arguments); err != nil {
		return newErrorResponse(req.ID, ErrorKindValidation, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	results := make(chan handlerResult, 1)
	go d.run(ctx, tool, req, results)

	select {
	case <-ctx.Done():
		go d.discardLateResult(req, results)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return newErrorResponse(req.ID, ErrorKindTimeout,
				fmt.Sprintf("tool %q did not complete within %s", req.Tool, d.timeout))
		}
		return newErrorResponse(req.ID, ErrorKindTimeout,
			fmt.Sprintf("tool %q call canceled", req.Tool))
	case r := <-results:
		if r.err != nil {
			return newErrorResponse(req.ID, ErrorKindHandler, r.err.Error())
		}
		return newResultResponse(req.ID, r.result)
	}
}

// Timeout returns the per-call deadline this dispatcher applies.
func (d *Dispatcher) Timeout() time.Duration {
	return d.timeout
}

func (d *Dispatcher) run(ctx context.Context, tool Tool, req Request, results chan<- handlerResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked",
				slog.String("tool", req.Tool),
				slog.String("id", req.ID),
				slog.Any("panic", r))
			results <- handlerResult{err: errHandlerPanic}
		}
	}()

	result, err := tool.Handler(ctx, req.Arguments)
	results <- handlerResult{result: result, err: err}
}

// discardLateResult waits out an abandoned handler so its goroutine can exit,
// logging whatever it eventually produced.
func (d *Dispatcher) discardLateResult(req Request, results <-chan handlerResult) {
	r := <-results
	d.logger.Warn("discarding result of abandoned tool call",
		slog.String("tool", req.Tool),
		slog.String("id", req.ID),
		slog.Bool("failed", r.err != nil))
}
