package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// entity is a named node in the graph with free-form observations attached.
type entity struct {
	Name         string   `json:"name"`
	EntityType   string   `json:"entity_type"`
	Observations []string `json:"observations"`
}

// relation is a directed, typed edge between two entities.
type relation struct {
	From         string `json:"from"`
	To           string `json:"to"`
	RelationType string `json:"relation_type"`
}

// observation carries new facts for an entity, or the facts to remove when
// used in a deletion.
type observation struct {
	EntityName string   `json:"entity_name"`
	Contents   []string `json:"contents"`

	Observations []string `json:"observations,omitempty"` // set on deletions
}

type knowledgeGraph struct {
	Entities  []entity   `json:"entities"`
	Relations []relation `json:"relations"`
}

// storedItem is one record in the persisted file, either an entity or a
// relation, discriminated by Type.
type storedItem struct {
	Type string `json:"type"`

	Name         string   `json:"name,omitempty"`
	EntityType   string   `json:"entity_type,omitempty"`
	Observations []string `json:"observations,omitempty"`

	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	RelationType string `json:"relation_type,omitempty"`
}

// knowledgeBase persists a knowledge graph as a flat JSON list of records.
// Every operation reloads the file, mutates the graph, and writes it back;
// the mutex keeps concurrent tool calls from interleaving those steps.
type knowledgeBase struct {
	path string

	mu sync.Mutex
}

func newKnowledgeBase(path string) *knowledgeBase {
	return &knowledgeBase{path: path}
}

// loadGraph reads the persisted graph. A missing file is an empty graph.
func (k *knowledgeBase) loadGraph() (knowledgeGraph, error) {
	graph := knowledgeGraph{
		Entities:  []entity{},
		Relations: []relation{},
	}

	data, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return graph, nil
		}
		return knowledgeGraph{}, fmt.Errorf("failed to read memory file %s: %w", k.path, err)
	}

	var items []storedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return knowledgeGraph{}, fmt.Errorf("failed to parse memory file %s: %w", k.path, err)
	}

	for _, item := range items {
		switch item.Type {
		case "entity":
			graph.Entities = append(graph.Entities, entity{
				Name:         item.Name,
				EntityType:   item.EntityType,
				Observations: item.Observations,
			})
		case "relation":
			graph.Relations = append(graph.Relations, relation{
				From:         item.From,
				To:           item.To,
				RelationType: item.RelationType,
			})
		}
	}

	return graph, nil
}

func (k *knowledgeBase) saveGraph(graph knowledgeGraph) error {
	items := make([]storedItem, 0, len(graph.Entities)+len(graph.Relations))
	for _, e := range graph.Entities {
		items = append(items, storedItem{
			Type:         "entity",
			Name:         e.Name,
			EntityType:   e.EntityType,
			Observations: e.Observations,
		})
	}
	for _, r := range graph.Relations {
		items = append(items, storedItem{
			Type:         "relation",
			From:         r.From,
			To:           r.To,
			RelationType: r.RelationType,
		})
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode memory file: %w", err)
	}
	if err := os.WriteFile(k.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write memory file %s: %w", k.path, err)
	}
	return nil
}

// createEntities adds the entities whose names are not taken yet and returns
// only those.
func (k *knowledgeBase) createEntities(entities []entity) ([]entity, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	graph, err := k.loadGraph()
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(graph.Entities))
	for _, e := range graph.Entities {
		known[e.Name] = true
	}

	created := []entity{}
	for _, e := range entities {
		if known[e.Name] {
			continue
		}
		known[e.Name] = true
		created = append(created, e)
		graph.Entities = append(graph.Entities, e)
	}

	if err := k.saveGraph(graph); err != nil {
		return nil, err
	}
	return created, nil
}

// createRelations adds the relations that are not present yet, comparing the
// full from/to/type triple, and returns only those.
func (k *knowledgeBase) createRelations(relations []relation) ([]relation, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	graph, err := k.loadGraph()
	if err != nil {
		return nil, err
	}

	known := make(map[relation]bool, len(graph.Relations))
	for _, r := range graph.Relations {
		known[r] = true
	}

	created := []relation{}
	for _, r := range relations {
		if known[r] {
			continue
		}
		known[r] = true
		created = append(created, r)
		graph.Relations = append(graph.Relations, r)
	}

	if err := k.saveGraph(graph); err != nil {
		return nil, err
	}
	return created, nil
}

// addObservations appends new facts to existing entities, skipping ones an
// entity already carries, and reports what was actually added per entity.
func (k *knowledgeBase) addObservations(observations []observation) ([]observation, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	graph, err := k.loadGraph()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(graph.Entities))
	for i, e := range graph.Entities {
		index[e.Name] = i
	}

	added := []observation{}
	for _, obs := range observations {
		i, ok := index[obs.EntityName]
		if !ok {
			return nil, fmt.Errorf("entity %q not found", obs.EntityName)
		}

		existing := make(map[string]bool, len(graph.Entities[i].Observations))
		for _, content := range graph.Entities[i].Observations {
			existing[content] = true
		}

		fresh := []string{}
		for _, content := range obs.Contents {
			if existing[content] {
				continue
			}
			existing[content] = true
			fresh = append(fresh, content)
			graph.Entities[i].Observations = append(graph.Entities[i].Observations, content)
		}
		added = append(added, observation{EntityName: obs.EntityName, Contents: fresh})
	}

	if err := k.saveGraph(graph); err != nil {
		return nil, err
	}
	return added, nil
}

// deleteEntities removes the named entities along with every relation that
// touches one of them, reporting how many of each were removed.
func (k *knowledgeBase) deleteEntities(names []string) (int, int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	graph, err := k.loadGraph()
	if err != nil {
		return 0, 0, err
	}

	doomed := make(map[string]bool, len(names))
	for _, name := range names {
		doomed[name] = true
	}

	keptEntities := []entity{}
	for _, e := range graph.Entities {
		if !doomed[e.Name] {
			keptEntities = append(keptEntities, e)
		}
	}
	removedEntities := len(graph.Entities) - len(keptEntities)
	graph.Entities = keptEntities

	keptRelations := []relation{}
	for _, r := range graph.Relations {
		if !doomed[r.From] && !doomed[r.To] {
			keptRelations = append(keptRelations, r)
		}
	}
	removedRelations := len(graph.Relations) - len(keptRelations)
	graph.Relations = keptRelations

	if err := k.saveGraph(graph); err != nil {
		return 0, 0, err
	}
	return removedEntities, removedRelations, nil
}

// deleteObservations removes the listed facts from their entities, reporting
// how many were removed. Unknown entities are skipped.
func (k *knowledgeBase) deleteObservations(deletions []observation) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	graph, err := k.loadGraph()
	if err != nil {
		return 0, err
	}

	index := make(map[string]int, len(graph.Entities))
	for i, e := range graph.Entities {
		index[e.Name] = i
	}

	removed := 0
	for _, deletion := range deletions {
		i, ok := index[deletion.EntityName]
		if !ok {
			continue
		}

		doomed := make(map[string]bool, len(deletion.Observations))
		for _, content := range deletion.Observations {
			doomed[content] = true
		}

		kept := []string{}
		for _, content := range graph.Entities[i].Observations {
			if doomed[content] {
				removed++
				continue
			}
			kept = append(kept, content)
		}
		graph.Entities[i].Observations = kept
	}

	if err := k.saveGraph(graph); err != nil {
		return 0, err
	}
	return removed, nil
}

// deleteRelations removes exact from/to/type matches, reporting how many.
func (k *knowledgeBase) deleteRelations(relations []relation) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	graph, err := k.loadGraph()
	if err != nil {
		return 0, err
	}

	doomed := make(map[relation]bool, len(relations))
	for _, r := range relations {
		doomed[r] = true
	}

	kept := []relation{}
	for _, r := range graph.Relations {
		if !doomed[r] {
			kept = append(kept, r)
		}
	}
	removed := len(graph.Relations) - len(kept)
	graph.Relations = kept

	if err := k.saveGraph(graph); err != nil {
		return 0, err
	}
	return removed, nil
}

func (k *knowledgeBase) readGraph() (knowledgeGraph, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.loadGraph()
}

// searchNodes returns the entities whose name, type, or observations contain
// the query, case-insensitively, plus the relations connecting them.
func (k *knowledgeBase) searchNodes(query string) (knowledgeGraph, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	graph, err := k.loadGraph()
	if err != nil {
		return knowledgeGraph{}, err
	}

	needle := strings.ToLower(query)
	matched := []entity{}
	for _, e := range graph.Entities {
		if entityMatches(e, needle) {
			matched = append(matched, e)
		}
	}

	return subgraph(matched, graph.Relations), nil
}

func entityMatches(e entity, needle string) bool {
	if strings.Contains(strings.ToLower(e.Name), needle) ||
		strings.Contains(strings.ToLower(e.EntityType), needle) {
		return true
	}
	for _, content := range e.Observations {
		if strings.Contains(strings.ToLower(content), needle) {
			return true
		}
	}
	return false
}

// openNodes returns the named entities plus the relations connecting them.
func (k *knowledgeBase) openNodes(names []string) (knowledgeGraph, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	graph, err := k.loadGraph()
	if err != nil {
		return knowledgeGraph{}, err
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	matched := []entity{}
	for _, e := range graph.Entities {
		if wanted[e.Name] {
			matched = append(matched, e)
		}
	}

	return subgraph(matched, graph.Relations), nil
}

// subgraph keeps only the relations whose both ends are in the entity set.
func subgraph(entities []entity, relations []relation) knowledgeGraph {
	names := make(map[string]bool, len(entities))
	for _, e := range entities {
		names[e.Name] = true
	}

	kept := []relation{}
	for _, r := range relations {
		if names[r.From] && names[r.To] {
			kept = append(kept, r)
		}
	}

	return knowledgeGraph{Entities: entities, Relations: kept}
}
