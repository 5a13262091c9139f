package memory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	aurora "github.com/KotDath/aurora-mcp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSuite(t *testing.T) *Suite {
	t.Helper()

	suite, err := NewSuite(filepath.Join(t.TempDir(), "memory.json"), discardLogger())
	if err != nil {
		t.Fatalf("NewSuite failed: %v", err)
	}
	return suite
}

func TestNewSuiteRejectsEmptyPath(t *testing.T) {
	_, err := NewSuite("", discardLogger())
	if err == nil || !strings.Contains(err.Error(), "cannot be empty") {
		t.Errorf("wrong error for an empty path. Got %v", err)
	}
}

func TestNewSuiteRejectsMissingDirectory(t *testing.T) {
	_, err := NewSuite(filepath.Join(t.TempDir(), "absent", "memory.json"), discardLogger())
	if err == nil || !strings.Contains(err.Error(), "directory does not exist") {
		t.Errorf("wrong error for a missing directory. Got %v", err)
	}
}

func TestNewSuiteRejectsMalformedExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	if err := os.WriteFile(path, []byte("not json"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	_, err := NewSuite(path, discardLogger())
	if err == nil || !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("wrong error for a malformed file. Got %v", err)
	}
}

func TestRegisterAllRegistersEveryTool(t *testing.T) {
	suite := newTestSuite(t)
	registry := aurora.NewToolRegistry()

	if err := suite.RegisterAll(registry); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	want := []string{
		"create_entities",
		"create_relations",
		"add_observations",
		"delete_entities",
		"delete_observations",
		"delete_relations",
		"read_graph",
		"search_nodes",
		"open_nodes",
	}
	summaries := registry.List()
	if len(summaries) != len(want) {
		t.Fatalf("wrong tool count. Got %d, want %d", len(summaries), len(want))
	}
	for i, summary := range summaries {
		if summary.Name != want[i] {
			t.Errorf("wrong tool at %d. Got %q, want %q", i, summary.Name, want[i])
		}
	}

	err := suite.RegisterAll(registry)
	if !errors.Is(err, aurora.ErrDuplicateTool) {
		t.Errorf("second RegisterAll returned %v, want ErrDuplicateTool", err)
	}
}

func TestCallCreateEntitiesDecodesWireArguments(t *testing.T) {
	suite := newTestSuite(t)

	res, err := suite.callCreateEntities(context.Background(), map[string]any{
		"entities": []any{
			map[string]any{
				"name":         "Ada",
				"entity_type":  "person",
				"observations": []any{"wrote programs"},
			},
		},
	})
	if err != nil {
		t.Fatalf("create_entities failed: %v", err)
	}

	created, ok := res.([]entity)
	if !ok || len(created) != 1 {
		t.Fatalf("wrong result shape. Got %#v", res)
	}
	if created[0].Name != "Ada" || created[0].EntityType != "person" {
		t.Errorf("wrong created entity: %+v", created[0])
	}
}

func TestCallDeleteEntitiesReportsCounts(t *testing.T) {
	suite := newTestSuite(t)

	if _, err := suite.callCreateEntities(context.Background(), map[string]any{
		"entities": []any{
			map[string]any{"name": "Ada", "entity_type": "person", "observations": []any{}},
			map[string]any{"name": "Engine", "entity_type": "machine", "observations": []any{}},
		},
	}); err != nil {
		t.Fatalf("create_entities failed: %v", err)
	}
	if _, err := suite.callCreateRelations(context.Background(), map[string]any{
		"relations": []any{
			map[string]any{"from": "Ada", "to": "Engine", "relation_type": "programs"},
		},
	}); err != nil {
		t.Fatalf("create_relations failed: %v", err)
	}

	res, err := suite.callDeleteEntities(context.Background(), map[string]any{
		"entity_names": []any{"Ada"},
	})
	if err != nil {
		t.Fatalf("delete_entities failed: %v", err)
	}
	if res != "removed 1 entities and 1 relations" {
		t.Errorf("wrong confirmation. Got %q", res)
	}
}

func TestCallReadGraphEncodesEmptySlices(t *testing.T) {
	suite := newTestSuite(t)

	res, err := suite.callReadGraph(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("read_graph failed: %v", err)
	}

	bs, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("failed to encode result: %v", err)
	}
	if string(bs) != `{"entities":[],"relations":[]}` {
		t.Errorf("wrong empty graph encoding. Got %s", bs)
	}
}

func TestCallSearchNodes(t *testing.T) {
	suite := newTestSuite(t)

	if _, err := suite.callCreateEntities(context.Background(), map[string]any{
		"entities": []any{
			map[string]any{"name": "Ada", "entity_type": "person", "observations": []any{"invented looping"}},
			map[string]any{"name": "Engine", "entity_type": "machine", "observations": []any{}},
		},
	}); err != nil {
		t.Fatalf("create_entities failed: %v", err)
	}

	res, err := suite.callSearchNodes(context.Background(), map[string]any{"query": "looping"})
	if err != nil {
		t.Fatalf("search_nodes failed: %v", err)
	}

	graph, ok := res.(knowledgeGraph)
	if !ok {
		t.Fatalf("wrong result type. Got %T", res)
	}
	if len(graph.Entities) != 1 || graph.Entities[0].Name != "Ada" {
		t.Errorf("wrong search result: %+v", graph)
	}
}

func TestCallAddObservationsSurfacesUnknownEntity(t *testing.T) {
	suite := newTestSuite(t)

	_, err := suite.callAddObservations(context.Background(), map[string]any{
		"observations": []any{
			map[string]any{"entity_name": "Nobody", "contents": []any{"fact"}},
		},
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("wrong error for an unknown entity. Got %v", err)
	}
}
