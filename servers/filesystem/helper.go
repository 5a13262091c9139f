package filesystem

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/sergi/go-diff/diffmatchpatch"
)

type treeEntry struct {
	Name     string      `json:"name"`
	Type     string      `json:"type"` // "file" or "directory"
	Children []treeEntry `json:"children,omitempty"`
}

type editOperation struct {
	OldText string
	NewText string
}

// resolve turns a root-relative path into an absolute one, refusing anything
// that would land outside the root. Symlinks are followed so a link pointing
// out of the sandbox cannot be used as an escape hatch; for paths that do not
// exist yet the parent directory is checked instead.
func (s *Suite) resolve(requested string) (string, error) {
	if requested == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	cleaned := filepath.Clean(filepath.FromSlash(requested))
	if filepath.IsAbs(cleaned) || cleaned == ".." ||
		strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("access denied: path %q escapes the root directory", requested)
	}

	full := filepath.Join(s.root, cleaned)

	real, err := filepath.EvalSymlinks(full)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path %q: %w", requested, err)
		}

		parent := filepath.Dir(full)
		realParent, err := filepath.EvalSymlinks(parent)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("parent directory of %q does not exist", requested)
			}
			return "", fmt.Errorf("failed to resolve path %q: %w", requested, err)
		}
		if !isSubpath(realParent, s.root) {
			return "", fmt.Errorf("access denied: path %q escapes the root directory", requested)
		}
		return full, nil
	}

	if !isSubpath(real, s.root) {
		return "", fmt.Errorf("access denied: path %q escapes the root directory", requested)
	}
	return real, nil
}

func isSubpath(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// applyEdits applies each replacement in order. An exact substring match wins;
// otherwise the old text is matched line by line ignoring surrounding
// whitespace, and the replacement adopts the indentation found in the file.
func applyEdits(content string, edits []editOperation) (string, error) {
	modified := normalizeLineEndings(content)

	for _, edit := range edits {
		oldText := normalizeLineEndings(edit.OldText)
		newText := normalizeLineEndings(edit.NewText)

		if strings.Contains(modified, oldText) {
			modified = strings.Replace(modified, oldText, newText, 1)
			continue
		}

		replaced, found := tryLineByLineMatch(modified, oldText, newText)
		if !found {
			return "", fmt.Errorf("could not find a match for edit:\n%s", edit.OldText)
		}
		modified = replaced
	}

	return modified, nil
}

func tryLineByLineMatch(content, oldText, newText string) (string, bool) {
	oldLines := strings.Split(oldText, "\n")
	contentLines := strings.Split(content, "\n")

	for i := 0; i <= len(contentLines)-len(oldLines); i++ {
		if isMatchingBlock(contentLines[i:i+len(oldLines)], oldLines) {
			return replaceMatchingBlock(contentLines, i, len(oldLines), oldLines, newText), true
		}
	}

	return content, false
}

func isMatchingBlock(contentBlock, oldLines []string) bool {
	for j, oldLine := range oldLines {
		if strings.TrimSpace(oldLine) != strings.TrimSpace(contentBlock[j]) {
			return false
		}
	}
	return true
}

func replaceMatchingBlock(contentLines []string, startIdx, blockLen int, oldLines []string, newText string) string {
	originalIndent := leadingWhitespace(contentLines[startIdx])
	newLines := indentNewLines(originalIndent, oldLines, strings.Split(newText, "\n"))

	result := make([]string, 0, len(contentLines)-blockLen+len(newLines))
	result = append(result, contentLines[:startIdx]...)
	result = append(result, newLines...)
	result = append(result, contentLines[startIdx+blockLen:]...)

	return strings.Join(result, "\n")
}

// indentNewLines reindents replacement lines so the first line matches the
// matched block and later lines keep their indentation relative to the old
// text.
func indentNewLines(originalIndent string, oldLines, newLines []string) []string {
	result := make([]string, 0, len(newLines))

	for j, line := range newLines {
		if j == 0 {
			result = append(result, originalIndent+strings.TrimLeft(line, " \t"))
			continue
		}
		if strings.TrimSpace(line) == "" {
			result = append(result, originalIndent)
			continue
		}

		oldIndent := ""
		if j < len(oldLines) {
			oldIndent = leadingWhitespace(oldLines[j])
		}
		relative := len(leadingWhitespace(line)) - len(oldIndent)
		if relative < 0 {
			relative = 0
		}
		result = append(result, originalIndent+strings.Repeat(" ", relative)+strings.TrimLeft(line, " \t"))
	}

	return result
}

func leadingWhitespace(s string) string {
	return s[:len(s)-len(strings.TrimLeft(s, " \t"))]
}

func createUnifiedDiff(originalContent, newContent, path string) string {
	dmp := diffmatchpatch.New()

	diffs := dmp.DiffMain(normalizeLineEndings(originalContent), normalizeLineEndings(newContent), true)
	patches := dmp.PatchMake(diffs)

	var diff strings.Builder
	diff.WriteString(fmt.Sprintf("--- %s (original)\n", path))
	diff.WriteString(fmt.Sprintf("+++ %s (modified)\n", path))
	for _, patch := range patches {
		diff.WriteString(dmp.PatchToText([]diffmatchpatch.Patch{patch}))
	}

	return diff.String()
}

// formatDiff fences the diff so it renders as a code block even when the file
// itself contains backticks.
func formatDiff(diff string) string {
	numBackticks := 3
	for strings.Contains(diff, strings.Repeat("`", numBackticks)) {
		numBackticks++
	}
	fence := strings.Repeat("`", numBackticks)
	return fmt.Sprintf("%sdiff\n%s%s\n", fence, diff, fence)
}

// searchTree walks the whole root, returning the root-relative slash paths of
// entries whose name contains the pattern, in sorted order. Exclude patterns
// are globs matched against the relative path; a bare name is treated as
// "anywhere in the tree".
func (s *Suite) searchTree(pattern string, excludePatterns []string) ([]string, error) {
	compiled := make([]glob.Glob, 0, len(excludePatterns))
	for _, p := range excludePatterns {
		if !strings.Contains(p, "*") {
			// A bare name excludes that entry wherever it sits in the tree.
			p = fmt.Sprintf("{%s,%s/**,**/%s,**/%s/**}", p, p, p, p)
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}

	needle := strings.ToLower(pattern)
	matches := []string{}

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == s.root {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		// An exclude can prune "**/node_modules/**" style subtrees; probe
		// with a trailing element so directory patterns match the directory
		// itself, not just its contents.
		for _, g := range compiled {
			if g.Match(rel) || (d.IsDir() && g.Match(rel+"/x")) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if strings.Contains(strings.ToLower(d.Name()), needle) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search files: %w", err)
	}

	sort.Strings(matches)
	return matches, nil
}

// buildTree returns the recursive structure under dir, skipping .git.
func buildTree(dir string) ([]treeEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	result := make([]treeEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}

		node := treeEntry{Name: entry.Name(), Type: "file"}
		if entry.IsDir() {
			node.Type = "directory"
			children, err := buildTree(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			node.Children = children
		}
		result = append(result, node)
	}

	return result, nil
}
