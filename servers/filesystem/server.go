// Package filesystem exposes sandboxed file operations as tools: every path
// argument is resolved relative to a single root directory, and calls that
// escape it (including through symlinks) are refused.
package filesystem

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	aurora "github.com/KotDath/aurora-mcp"
)

// Suite owns the filesystem tools and the root directory they are confined
// to.
type Suite struct {
	root   string
	logger *slog.Logger
}

// NewSuite creates a filesystem suite rooted at the given directory. The root
// must exist and be a directory; it is resolved through symlinks once here so
// later sandbox checks compare real paths.
func NewSuite(root string, logger *slog.Logger) (*Suite, error) {
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	return &Suite{
		root:   resolved,
		logger: logger.With(slog.String("component", "filesystem"), slog.String("root", resolved)),
	}, nil
}

// Root returns the resolved root directory the suite operates under.
func (s *Suite) Root() string {
	return s.root
}

// RegisterAll registers every filesystem tool on the registry.
func (s *Suite) RegisterAll(registry *aurora.ToolRegistry) error {
	tools := []aurora.Tool{
		{
			Name:        "read_file",
			Description: "Reads the complete contents of a file under the root directory",
			InputSchema: pathOnlySchema,
			Handler:     s.callReadFile,
		},
		{
			Name:        "read_multiple_files",
			Description: "Reads several files at once; failures on one file do not stop the rest",
			InputSchema: readMultipleFilesSchema,
			Handler:     s.callReadMultipleFiles,
		},
		{
			Name:        "write_file",
			Description: "Creates or overwrites a file with the given content",
			InputSchema: writeFileSchema,
			Handler:     s.callWriteFile,
		},
		{
			Name:        "edit_file",
			Description: "Applies text replacements to a file and returns a unified diff of the change",
			InputSchema: editFileSchema,
			Handler:     s.callEditFile,
		},
		{
			Name:        "create_directory",
			Description: "Creates a directory, including missing parents",
			InputSchema: pathOnlySchema,
			Handler:     s.callCreateDirectory,
		},
		{
			Name:        "list_directory",
			Description: "Lists a directory's entries, marking each as [FILE] or [DIR]",
			InputSchema: pathOnlySchema,
			Handler:     s.callListDirectory,
		},
		{
			Name:        "directory_tree",
			Description: "Returns the recursive structure of a directory as nested entries",
			InputSchema: pathOnlySchema,
			Handler:     s.callDirectoryTree,
		},
		{
			Name:        "move_file",
			Description: "Moves or renames a file or directory within the root",
			InputSchema: moveFileSchema,
			Handler:     s.callMoveFile,
		},
		{
			Name:        "search_files",
			Description: "Finds files and directories whose names contain a pattern, with glob excludes",
			InputSchema: searchFilesSchema,
			Handler:     s.callSearchFiles,
		},
		{
			Name:        "get_file_info",
			Description: "Reports size, timestamps, and permissions for a file or directory",
			InputSchema: pathOnlySchema,
			Handler:     s.callGetFileInfo,
		},
	}

	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("failed to register tool %q: %w", t.Name, err)
		}
	}
	return nil
}
