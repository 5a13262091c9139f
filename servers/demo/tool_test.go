package demo_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	aurora "github.com/KotDath/aurora-mcp"
	"github.com/KotDath/aurora-mcp/servers/demo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var demoToolNames = []string{
	"hello_world", "echo", "batch_greeting", "get_server_info", "health_check", "list_tools",
}

// newDemoDispatcher registers the full suite and returns a dispatcher over it,
// so tool calls run through validation exactly as they would in production.
func newDemoDispatcher(t *testing.T) *aurora.Dispatcher {
	t.Helper()

	registry := aurora.NewToolRegistry()
	suite := demo.NewSuite(aurora.Info{Name: "aurora-mcp", Version: "0.1.0"}, discardLogger())
	if err := suite.RegisterAll(registry); err != nil {
		t.Fatalf("failed to register demo tools: %v", err)
	}
	registry.Freeze()

	return aurora.NewDispatcher(registry, time.Second, discardLogger())
}

func call(t *testing.T, dispatcher *aurora.Dispatcher, tool string, args map[string]any) aurora.Response {
	t.Helper()
	return dispatcher.Dispatch(context.Background(), aurora.Request{ID: "1", Tool: tool, Arguments: args})
}

func mustResult(t *testing.T, dispatcher *aurora.Dispatcher, tool string, args map[string]any) any {
	t.Helper()

	resp := call(t, dispatcher, tool, args)
	if !resp.OK {
		t.Fatalf("%s call failed: %+v", tool, resp.Error)
	}
	return resp.Result
}

func TestHelloWorld(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	result := mustResult(t, dispatcher, "hello_world", nil)
	if result != "Hello, World!" {
		t.Errorf("wrong greeting. Got %v, want %q", result, "Hello, World!")
	}
}

func TestHelloWorldRejectsArguments(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	resp := call(t, dispatcher, "hello_world", map[string]any{"shout": true})
	if resp.OK {
		t.Fatal("call with unexpected arguments succeeded")
	}
	if resp.Error.Kind != aurora.ErrorKindValidation {
		t.Errorf("wrong error kind. Got %q, want %q", resp.Error.Kind, aurora.ErrorKindValidation)
	}
}

func TestEcho(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	result := mustResult(t, dispatcher, "echo", map[string]any{"text": "round trip"})
	if result != "round trip" {
		t.Errorf("wrong result. Got %v, want %q", result, "round trip")
	}
}

func TestEchoRequiresText(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	resp := call(t, dispatcher, "echo", map[string]any{})
	if resp.OK {
		t.Fatal("call without text succeeded")
	}
	if resp.Error.Kind != aurora.ErrorKindValidation {
		t.Errorf("wrong error kind. Got %q, want %q", resp.Error.Kind, aurora.ErrorKindValidation)
	}
	if !strings.Contains(resp.Error.Message, "text") {
		t.Errorf("error message does not name the missing field: %q", resp.Error.Message)
	}
}

func TestBatchGreeting(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "DefaultPrefix",
			args: map[string]any{"names": []any{"Ann", "Ben"}},
			want: "Hello, Ann!\nHello, Ben!",
		},
		{
			name: "CustomPrefix",
			args: map[string]any{"names": []any{"Ann"}, "prefix": "Willkommen"},
			want: "Willkommen, Ann!",
		},
		{
			name: "Numbered",
			args: map[string]any{"names": []any{"Ann", "Ben"}, "include_numbers": true},
			want: "1. Hello, Ann!\n2. Hello, Ben!",
		},
		{
			name: "SkipsEmptyNames",
			args: map[string]any{"names": []any{"", "Ann", ""}},
			want: "Hello, Ann!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mustResult(t, dispatcher, "batch_greeting", tt.args)
			if result != tt.want {
				t.Errorf("wrong greetings. Got %q, want %q", result, tt.want)
			}
		})
	}
}

func TestBatchGreetingAsJSON(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	result := mustResult(t, dispatcher, "batch_greeting", map[string]any{
		"names":   []any{"Ann", "Ben"},
		"as_json": true,
	})

	report, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("wrong result type. Got %T, want map", result)
	}

	greetings, ok := report["greetings"].([]string)
	if !ok {
		t.Fatalf("wrong greetings type. Got %T, want []string", report["greetings"])
	}
	if len(greetings) != 2 || greetings[0] != "Hello, Ann!" || greetings[1] != "Hello, Ben!" {
		t.Errorf("wrong greetings. Got %v", greetings)
	}
	if report["count"] != 2 {
		t.Errorf("wrong count. Got %v, want 2", report["count"])
	}
	if report["prefix"] != "Hello" {
		t.Errorf("wrong prefix. Got %v, want %q", report["prefix"], "Hello")
	}
	if report["include_numbers"] != false {
		t.Errorf("wrong include_numbers. Got %v, want false", report["include_numbers"])
	}
}

func TestBatchGreetingEmptyNames(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	for name, args := range map[string]map[string]any{
		"EmptyList":       {"names": []any{}},
		"OnlyEmptyString": {"names": []any{""}},
	} {
		t.Run(name, func(t *testing.T) {
			resp := call(t, dispatcher, "batch_greeting", args)
			if resp.OK {
				t.Fatal("call without usable names succeeded")
			}
			if resp.Error.Kind != aurora.ErrorKindHandler {
				t.Errorf("wrong error kind. Got %q, want %q", resp.Error.Kind, aurora.ErrorKindHandler)
			}
			if resp.Error.Message != "names list cannot be empty" {
				t.Errorf("wrong error message. Got %q", resp.Error.Message)
			}
		})
	}
}

func TestBatchGreetingRejectsWrongTypes(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	resp := call(t, dispatcher, "batch_greeting", map[string]any{"names": "Ann"})
	if resp.OK {
		t.Fatal("call with non-array names succeeded")
	}
	if resp.Error.Kind != aurora.ErrorKindValidation {
		t.Errorf("wrong error kind. Got %q, want %q", resp.Error.Kind, aurora.ErrorKindValidation)
	}
}

func TestGetServerInfo(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	result := mustResult(t, dispatcher, "get_server_info", nil)
	info, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("wrong result type. Got %T, want map", result)
	}

	if info["name"] != "aurora-mcp" {
		t.Errorf("wrong name. Got %v, want %q", info["name"], "aurora-mcp")
	}
	if info["version"] != "0.1.0" {
		t.Errorf("wrong version. Got %v, want %q", info["version"], "0.1.0")
	}

	tools, ok := info["tools"].([]string)
	if !ok {
		t.Fatalf("wrong tools type. Got %T, want []string", info["tools"])
	}
	if len(tools) != len(demoToolNames) {
		t.Fatalf("wrong tool count. Got %d, want %d", len(tools), len(demoToolNames))
	}
	for i, want := range demoToolNames {
		if tools[i] != want {
			t.Errorf("tool %d out of order. Got %q, want %q", i, tools[i], want)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	result := mustResult(t, dispatcher, "health_check", nil)
	health, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("wrong result type. Got %T, want map", result)
	}

	if health["status"] != "healthy" {
		t.Errorf("wrong status. Got %v, want %q", health["status"], "healthy")
	}
	if health["server"] != "aurora-mcp" {
		t.Errorf("wrong server. Got %v, want %q", health["server"], "aurora-mcp")
	}
	if health["tools_available"] != len(demoToolNames) {
		t.Errorf("wrong tools_available. Got %v, want %d", health["tools_available"], len(demoToolNames))
	}

	uptime, ok := health["uptime_seconds"].(int64)
	if !ok || uptime < 0 {
		t.Errorf("bad uptime. Got %v", health["uptime_seconds"])
	}

	ts, _ := health["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", ts, err)
	}
}

func TestListTools(t *testing.T) {
	dispatcher := newDemoDispatcher(t)

	result := mustResult(t, dispatcher, "list_tools", nil)
	summaries, ok := result.([]aurora.ToolSummary)
	if !ok {
		t.Fatalf("wrong result type. Got %T, want []aurora.ToolSummary", result)
	}

	if len(summaries) != len(demoToolNames) {
		t.Fatalf("wrong tool count. Got %d, want %d", len(summaries), len(demoToolNames))
	}
	for i, summary := range summaries {
		if summary.Name != demoToolNames[i] {
			t.Errorf("tool %d out of order. Got %q, want %q", i, summary.Name, demoToolNames[i])
		}
		if summary.Description == "" {
			t.Errorf("tool %q has no description", summary.Name)
		}
	}
}

func TestRegisterAllRejectsSecondRegistration(t *testing.T) {
	registry := aurora.NewToolRegistry()
	suite := demo.NewSuite(aurora.Info{Name: "aurora-mcp", Version: "0.1.0"}, discardLogger())

	if err := suite.RegisterAll(registry); err != nil {
		t.Fatalf("first RegisterAll failed: %v", err)
	}

	err := suite.RegisterAll(registry)
	if err == nil {
		t.Fatal("second RegisterAll succeeded")
	}
	if !errors.Is(err, aurora.ErrDuplicateTool) {
		t.Errorf("Expected ErrDuplicateTool, got %v", err)
	}
}
