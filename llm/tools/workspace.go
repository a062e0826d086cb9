package tools

import (
	"bufio"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frogteam/frogteam/internal/filelock"
)

// Tool names exposed to members.
const (
	GetFileContentTool = "getFileContentApi"
	SaveContentTool    = "saveContentToFileApi"
	CodeSearchTool     = "codeSearchApiTool"
)

// DefaultIgnoreDirs are skipped when listing or searching project files.
var DefaultIgnoreDirs = []string{"node_modules", ".git", ".vscode", "__pycache__", "a-saved"}

// Workspace resolves tool paths against a root directory.
type Workspace struct {
	Root   string
	Ignore []string
	// LockWait bounds how long file tools wait for a contended lock.
	// Zero uses filelock.DefaultMaxWait.
	LockWait time.Duration
	logger   *zap.Logger
}

// NewWorkspace creates a workspace rooted at root. A nil ignore list uses
// DefaultIgnoreDirs.
func NewWorkspace(root string, ignore []string, logger *zap.Logger) *Workspace {
	if ignore == nil {
		ignore = DefaultIgnoreDirs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{Root: root, Ignore: ignore, logger: logger.With(zap.String("component", "workspace"))}
}

// Resolve maps a workspace-relative name to an absolute path inside Root.
func (w *Workspace) Resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("file name is required")
	}
	root, err := filepath.Abs(w.Root)
	if err != nil {
		return "", err
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", name)
	}
	return p, nil
}

// ReadFile returns the file content, or "" when the file does not exist.
// The read holds a shared lock.
func (w *Workspace) ReadFile(ctx context.Context, name string) (string, error) {
	path, err := w.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}
	var content string
	err = w.withLock(ctx, path, filelock.Shared, func() error {
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		content = string(data)
		return nil
	})
	return content, err
}

// WriteFile creates parent directories and replaces the file content under
// an exclusive lock.
func (w *Workspace) WriteFile(ctx context.Context, name, content string) error {
	path, err := w.Resolve(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.withLock(ctx, path, filelock.Exclusive, func() error {
		return os.WriteFile(path, []byte(content), 0o644)
	})
}

func (w *Workspace) withLock(ctx context.Context, path string, mode filelock.Mode, fn func() error) error {
	err := filelock.WithLockOptions(ctx, path, mode, filelock.Options{MaxWait: w.LockWait}, fn)
	if errors.Is(err, filelock.ErrLockTimeout) {
		w.logger.Warn("file lock timed out", zap.String("file", path))
	}
	return err
}

// isLockFile reports whether path is the companion lock of an existing file.
func isLockFile(path string) bool {
	base, ok := strings.CutSuffix(path, filelock.LockPath(""))
	if !ok || base == "" {
		return false
	}
	info, err := os.Stat(base)
	return err == nil && info.Mode().IsRegular()
}

func (w *Workspace) ignored(name string) bool {
	for _, d := range w.Ignore {
		if d == name {
			return true
		}
	}
	return false
}

// walk visits every non-ignored regular file with its slash-separated relative path.
func (w *Workspace) walk(ctx context.Context, visit func(rel, abs string) error) error {
	root := w.Root
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && w.ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || isLockFile(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		return visit(filepath.ToSlash(rel), path)
	})
}

// ListFiles returns every project file relative to Root.
func (w *Workspace) ListFiles(ctx context.Context) ([]string, error) {
	var files []string
	err := w.walk(ctx, func(rel, _ string) error {
		files = append(files, rel)
		return nil
	})
	return files, err
}

// ProjectFilesXML renders the project file list for prompt injection.
// A missing root yields an empty list.
func (w *Workspace) ProjectFilesXML(ctx context.Context) (string, error) {
	files, err := w.ListFiles(ctx)
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return FilesXML(files), nil
}

// Search returns files whose base name (or relative path, when pattern
// contains a slash) matches pattern and whose content contains term,
// compared case-insensitively.
func (w *Workspace) Search(ctx context.Context, term, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	needle := strings.ToLower(term)

	var matches []string
	err := w.walk(ctx, func(rel, abs string) error {
		subject := filepath.Base(rel)
		if strings.Contains(pattern, "/") {
			subject = rel
		}
		if ok, _ := filepath.Match(pattern, subject); !ok {
			return nil
		}
		found, err := fileContains(abs, needle)
		if err != nil {
			w.logger.Warn("search skipped unreadable file", zap.String("file", rel), zap.Error(err))
			return nil
		}
		if found {
			matches = append(matches, rel)
		}
		return nil
	})
	return matches, err
}

func fileContains(path, lowerNeedle string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if lowerNeedle == "" {
		return true, nil
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if strings.Contains(strings.ToLower(sc.Text()), lowerNeedle) {
			return true, nil
		}
	}
	return false, sc.Err()
}

// FilesXML renders paths as the projectFiles document understood by members.
func FilesXML(files []string) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<projectFiles>\n")
	for _, f := range files {
		b.WriteString("  <file>")
		_ = xml.EscapeText(&b, []byte(f))
		b.WriteString("</file>\n")
	}
	b.WriteString("</projectFiles>")
	return b.String()
}

// Register adds the file and search tools to reg.
func (w *Workspace) Register(reg ToolRegistry) error {
	if err := reg.Register(GetFileContentTool, w.getFileContent, ToolMetadata{
		Schema: toolSchema(GetFileContentTool, "Read the content of a specified file.",
			map[string]string{"fileName": "The path of the file to read"}, "fileName"),
	}); err != nil {
		return err
	}
	if err := reg.Register(SaveContentTool, w.saveContent, ToolMetadata{
		Schema: toolSchema(SaveContentTool, "Save the given content to a specified file.",
			map[string]string{
				"content":  "The content to write to the file",
				"fileName": "The path of the file to write",
			}, "content", "fileName"),
	}); err != nil {
		return err
	}
	return reg.Register(CodeSearchTool, w.codeSearch, ToolMetadata{
		Schema: toolSchema(CodeSearchTool, "Search project files for a term. Returns the matching file paths as XML.",
			map[string]string{
				"searchTerm":  "The term to search for within the files",
				"filePattern": "Glob matched against file names, '*' for all files",
			}, "searchTerm"),
	})
}
