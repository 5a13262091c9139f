package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// decodeArgs round-trips the validated argument map into a typed struct so
// handlers work with real fields instead of nested type assertions.
func decodeArgs(args map[string]any, v any) error {
	bs, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(bs, v); err != nil {
		return fmt.Errorf("failed to decode arguments: %w", err)
	}
	return nil
}

func (s *Suite) callCreateEntities(_ context.Context, args map[string]any) (any, error) {
	var params createEntitiesArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	created, err := s.kb.createEntities(params.Entities)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("created entities", slog.Int("count", len(created)))
	return created, nil
}

func (s *Suite) callCreateRelations(_ context.Context, args map[string]any) (any, error) {
	var params createRelationsArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	created, err := s.kb.createRelations(params.Relations)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("created relations", slog.Int("count", len(created)))
	return created, nil
}

func (s *Suite) callAddObservations(_ context.Context, args map[string]any) (any, error) {
	var params addObservationsArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	added, err := s.kb.addObservations(params.Observations)
	if err != nil {
		return nil, err
	}
	return added, nil
}

func (s *Suite) callDeleteEntities(_ context.Context, args map[string]any) (any, error) {
	var params deleteEntitiesArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	entities, relations, err := s.kb.deleteEntities(params.EntityNames)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("deleted entities",
		slog.Int("entities", entities), slog.Int("relations", relations))
	return fmt.Sprintf("removed %d entities and %d relations", entities, relations), nil
}

func (s *Suite) callDeleteObservations(_ context.Context, args map[string]any) (any, error) {
	var params deleteObservationsArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	removed, err := s.kb.deleteObservations(params.Deletions)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("removed %d observations", removed), nil
}

func (s *Suite) callDeleteRelations(_ context.Context, args map[string]any) (any, error) {
	var params deleteRelationsArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	removed, err := s.kb.deleteRelations(params.Relations)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("removed %d relations", removed), nil
}

func (s *Suite) callReadGraph(_ context.Context, _ map[string]any) (any, error) {
	return s.kb.readGraph()
}

func (s *Suite) callSearchNodes(_ context.Context, args map[string]any) (any, error) {
	var params searchNodesArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	return s.kb.searchNodes(params.Query)
}

func (s *Suite) callOpenNodes(_ context.Context, args map[string]any) (any, error) {
	var params openNodesArgs
	if err := decodeArgs(args, &params); err != nil {
		return nil, err
	}

	return s.kb.openNodes(params.Names)
}
