package filesystem

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

func (s *Suite) callReadFile(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	bs, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(bs), nil
}

func (s *Suite) callReadMultipleFiles(ctx context.Context, args map[string]any) (any, error) {
	rawPaths, _ := args["paths"].([]any)

	// One unreadable file must not fail the batch; its entry carries the
	// error instead of content.
	results := make([]map[string]any, 0, len(rawPaths))
	for _, raw := range rawPaths {
		path, _ := raw.(string)

		entry := map[string]any{"path": path}
		content, err := s.callReadFile(ctx, map[string]any{"path": path})
		if err != nil {
			entry["error"] = err.Error()
		} else {
			entry["content"] = content
		}
		results = append(results, entry)
	}

	return results, nil
}

func (s *Suite) callWriteFile(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(full, []byte(content), 0600); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Debug("wrote file", slog.String("path", path), slog.Int("bytes", len(content)))
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

func (s *Suite) callEditFile(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	dryRun, _ := args["dry_run"].(bool)

	rawEdits, _ := args["edits"].([]any)
	edits := make([]editOperation, 0, len(rawEdits))
	for _, raw := range rawEdits {
		fields, _ := raw.(map[string]any)
		oldText, _ := fields["old_text"].(string)
		newText, _ := fields["new_text"].(string)
		edits = append(edits, editOperation{OldText: oldText, NewText: newText})
	}
	if len(edits) == 0 {
		return nil, fmt.Errorf("edits list cannot be empty")
	}

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	original, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	modified, err := applyEdits(string(original), edits)
	if err != nil {
		return nil, err
	}

	if !dryRun {
		if err := os.WriteFile(full, []byte(modified), 0600); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		s.logger.Debug("edited file", slog.String("path", path), slog.Int("edits", len(edits)))
	}

	return formatDiff(createUnifiedDiff(string(original), modified, path)), nil
}

func (s *Suite) callCreateDirectory(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(full, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return fmt.Sprintf("created directory %s", path), nil
}

func (s *Suite) callListDirectory(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}

	listing := make([]string, 0, len(entries))
	for _, entry := range entries {
		prefix := "[FILE] "
		if entry.IsDir() {
			prefix = "[DIR] "
		}
		listing = append(listing, prefix+entry.Name())
	}
	return listing, nil
}

func (s *Suite) callDirectoryTree(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is a file, not a directory", path)
	}

	return buildTree(full)
}

func (s *Suite) callMoveFile(_ context.Context, args map[string]any) (any, error) {
	source, _ := args["source"].(string)
	destination, _ := args["destination"].(string)

	fullSource, err := s.resolve(source)
	if err != nil {
		return nil, err
	}
	fullDestination, err := s.resolve(destination)
	if err != nil {
		return nil, err
	}

	// Refuse to clobber an existing destination, matching the usual mv -n
	// expectation for a remote caller.
	if _, err := os.Stat(fullDestination); err == nil {
		return nil, fmt.Errorf("destination %s already exists", destination)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat %s: %w", destination, err)
	}

	if err := os.Rename(fullSource, fullDestination); err != nil {
		return nil, fmt.Errorf("failed to move %s: %w", source, err)
	}

	s.logger.Debug("moved file", slog.String("source", source), slog.String("destination", destination))
	return fmt.Sprintf("moved %s to %s", source, destination), nil
}

func (s *Suite) callSearchFiles(_ context.Context, args map[string]any) (any, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}

	rawExcludes, _ := args["exclude_patterns"].([]any)
	excludes := make([]string, 0, len(rawExcludes))
	for _, raw := range rawExcludes {
		if p, _ := raw.(string); p != "" {
			excludes = append(excludes, p)
		}
	}

	return s.searchTree(pattern, excludes)
}

func (s *Suite) callGetFileInfo(_ context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)

	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return map[string]any{
		"path":         path,
		"size":         info.Size(),
		"modified":     info.ModTime().UTC().Format(time.RFC3339),
		"permissions":  info.Mode().Perm().String(),
		"is_directory": info.IsDir(),
	}, nil
}
