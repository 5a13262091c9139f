// Package memory exposes a persistent knowledge graph as tools: named
// entities carrying observations, typed relations between them, and search
// over the whole graph. State lives in a single JSON file so it survives
// restarts.
package memory

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	aurora "github.com/KotDath/aurora-mcp"
)

// Suite owns the knowledge graph tools and the file they persist to.
type Suite struct {
	kb     *knowledgeBase
	logger *slog.Logger
}

// NewSuite creates a memory suite persisting to the given file. The file does
// not have to exist yet, but its directory must, and an existing file has to
// parse; both are checked here so a misconfigured path fails at startup
// instead of on the first call.
func NewSuite(path string, logger *slog.Logger) (*Suite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return nil, fmt.Errorf("memory file path cannot be empty")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve memory file path: %w", err)
	}

	kb := newKnowledgeBase(abs)
	if _, err := os.Stat(abs); err == nil {
		if _, err := kb.loadGraph(); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if _, err := os.Stat(filepath.Dir(abs)); err != nil {
			return nil, fmt.Errorf("memory file directory does not exist: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat memory file %s: %w", abs, err)
	}

	return &Suite{
		kb:     kb,
		logger: logger.With(slog.String("component", "memory"), slog.String("path", abs)),
	}, nil
}

// Path returns the file the knowledge graph is persisted to.
func (s *Suite) Path() string {
	return s.kb.path
}

// RegisterAll registers every knowledge graph tool on the registry.
func (s *Suite) RegisterAll(registry *aurora.ToolRegistry) error {
	tools := []aurora.Tool{
		{
			Name:        "create_entities",
			Description: "Adds new named entities to the knowledge graph, skipping names that already exist",
			InputSchema: createEntitiesSchema,
			Handler:     s.callCreateEntities,
		},
		{
			Name:        "create_relations",
			Description: "Adds directed, typed relations between entities, skipping exact duplicates",
			InputSchema: createRelationsSchema,
			Handler:     s.callCreateRelations,
		},
		{
			Name:        "add_observations",
			Description: "Appends observations to existing entities and reports what was actually added",
			InputSchema: addObservationsSchema,
			Handler:     s.callAddObservations,
		},
		{
			Name:        "delete_entities",
			Description: "Removes entities and every relation that touches them",
			InputSchema: deleteEntitiesSchema,
			Handler:     s.callDeleteEntities,
		},
		{
			Name:        "delete_observations",
			Description: "Removes specific observations from entities",
			InputSchema: deleteObservationsSchema,
			Handler:     s.callDeleteObservations,
		},
		{
			Name:        "delete_relations",
			Description: "Removes relations matching the given from/to/type triples",
			InputSchema: deleteRelationsSchema,
			Handler:     s.callDeleteRelations,
		},
		{
			Name:        "read_graph",
			Description: "Returns the entire knowledge graph",
			InputSchema: readGraphSchema,
			Handler:     s.callReadGraph,
		},
		{
			Name:        "search_nodes",
			Description: "Finds entities whose name, type, or observations contain a query, plus the relations between them",
			InputSchema: searchNodesSchema,
			Handler:     s.callSearchNodes,
		},
		{
			Name:        "open_nodes",
			Description: "Returns the named entities and the relations between them",
			InputSchema: openNodesSchema,
			Handler:     s.callOpenNodes,
		},
	}

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("failed to register tool %q: %w", t.Name, err)
		}
	}
	return nil
}
