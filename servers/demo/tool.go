// Package demo bundles the demonstration tool suite served by the aurora-mcp
// binary: greeting generators plus health and introspection reporters.
package demo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	aurora "github.com/KotDath/aurora-mcp"
)

// Suite owns the demonstration tools and the state they report on: the
// server's identity, its start time, and the registry they were registered
// into.
type Suite struct {
	info      aurora.Info
	logger    *slog.Logger
	startedAt time.Time

	registry *aurora.ToolRegistry
}

// NewSuite creates the demonstration suite. Uptime reported by health_check
// counts from this call.
func NewSuite(info aurora.Info, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suite{
		info:      info,
		logger:    logger.With(slog.String("component", "demo")),
		startedAt: time.Now(),
	}
}

// RegisterAll registers every demonstration tool on the registry, in the
// order they are listed by introspection tools.
func (s *Suite) RegisterAll(registry *aurora.ToolRegistry) error {
	s.registry = registry

	tools := []aurora.Tool{
		{
			Name:        "hello_world",
			Description: "Returns a friendly greeting",
			InputSchema: helloWorldSchema,
			Handler:     s.callHelloWorld,
		},
		{
			Name:        "echo",
			Description: "Echoes back the input text",
			InputSchema: echoSchema,
			Handler:     s.callEcho,
		},
		{
			Name:        "batch_greeting",
			Description: "Greets a list of names, optionally numbered or as JSON",
			InputSchema: batchGreetingSchema,
			Handler:     s.callBatchGreeting,
		},
		{
			Name:        "get_server_info",
			Description: "Describes this server and the tools it exposes",
			InputSchema: noArgsSchema,
			Handler:     s.callServerInfo,
		},
		{
			Name:        "health_check",
			Description: "Reports server health and uptime",
			InputSchema: noArgsSchema,
			Handler:     s.callHealthCheck,
		},
		{
			Name:        "list_tools",
			Description: "Lists every registered tool",
			InputSchema: noArgsSchema,
			Handler:     s.callListTools,
		},
	}

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("failed to register tool %q: %w", t.Name, err)
		}
	}
	return nil
}

func (s *Suite) callHelloWorld(context.Context, map[string]any) (any, error) {
	s.logger.Debug("hello_world called")
	return "Hello, World!", nil
}

func (s *Suite) callEcho(_ context.Context, args map[string]any) (any, error) {
	text, _ := args["text"].(string)
	return text, nil
}

func (s *Suite) callBatchGreeting(_ context.Context, args map[string]any) (any, error) {
	rawNames, _ := args["names"].([]any)
	names := make([]string, 0, len(rawNames))
	for _, n := range rawNames {
		name, _ := n.(string)
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("names list cannot be empty")
	}

	prefix, _ := args["prefix"].(string)
	if prefix == "" {
		prefix = "Hello"
	}
	includeNumbers, _ := args["include_numbers"].(bool)
	asJSON, _ := args["as_json"].(bool)

	greetings := make([]string, len(names))
	for i, name := range names {
		greeting := fmt.Sprintf("%s, %s!", prefix, name)
		if includeNumbers {
			greeting = fmt.Sprintf("%d. %s", i+1, greeting)
		}
		greetings[i] = greeting
	}

	s.logger.Debug("batch_greeting called", slog.Int("count", len(greetings)))

	if asJSON {
		return map[string]any{
			"greetings":       greetings,
			"count":           len(greetings),
			"prefix":          prefix,
			"include_numbers": includeNumbers,
		}, nil
	}
	return strings.Join(greetings, "\n"), nil
}

func (s *Suite) callServerInfo(context.Context, map[string]any) (any, error) {
	summaries := s.registry.Summaries()
	names := make([]string, len(summaries))
	for i, summary := range summaries {
		names[i] = summary.Name
	}

	return map[string]any{
		"name":        s.info.Name,
		"version":     s.info.Version,
		"description": "Demonstration tool-invocation protocol server",
		"tools":       names,
	}, nil
}

func (s *Suite) callHealthCheck(context.Context, map[string]any) (any, error) {
	return map[string]any{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"server":          s.info.Name,
		"version":         s.info.Version,
		"uptime_seconds":  int64(time.Since(s.startedAt).Seconds()),
		"tools_available": s.registry.Len(),
	}, nil
}

func (s *Suite) callListTools(context.Context, map[string]any) (any, error) {
	return s.registry.Summaries(), nil
}
