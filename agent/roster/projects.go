package roster

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/frogteam/frogteam/types"
	"go.uber.org/zap"
)

// Project is a named problem statement rooted in a directory.
type Project struct {
	Name      string `json:"projectName"`
	Directory string `json:"projectDirectory"`
	Problem   string `json:"projectDescription"`
}

// PackageXML renders the project for inclusion in a lead's question.
func (p Project) PackageXML() string {
	return fmt.Sprintf("<project>\n<name>%s</name>\n<directory>%s</directory>\n<problem>%s</problem>\n</project>",
		p.Name, p.Directory, p.Problem)
}

type projectsFile struct {
	Projects []Project `json:"projects"`
}

// ProjectRegistry holds projects.json.
type ProjectRegistry struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	projects []Project
}

// NewProjectRegistry creates a registry backed by path. Call Load before use.
func NewProjectRegistry(path string, logger *zap.Logger) *ProjectRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectRegistry{path: path, logger: logger.With(zap.String("component", "project_registry"))}
}

// NewStaticProjectRegistry returns an in-memory registry; Add does not write a file.
func NewStaticProjectRegistry(projects ...Project) *ProjectRegistry {
	r := NewProjectRegistry("", nil)
	r.projects = append([]Project(nil), projects...)
	return r
}

// Path returns the backing file.
func (r *ProjectRegistry) Path() string { return r.path }

// Load reads projects.json, creating an empty one when missing.
func (r *ProjectRegistry) Load(ctx context.Context) error {
	if r.path == "" {
		return nil
	}
	var pf projectsFile
	found, err := readJSON(ctx, r.path, &pf)
	if err != nil {
		return err
	}
	if !found {
		pf.Projects = []Project{}
		if err := writeJSON(ctx, r.path, pf); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.projects = pf.Projects
	r.mu.Unlock()
	r.logger.Info("projects loaded", zap.Int("projects", len(pf.Projects)))
	return nil
}

// Reload re-reads the file; the previous projects are kept on error.
func (r *ProjectRegistry) Reload(ctx context.Context) error {
	if err := r.Load(ctx); err != nil {
		r.logger.Warn("project reload failed, keeping previous projects", zap.Error(err))
		return err
	}
	return nil
}

// All returns a copy of every project.
func (r *ProjectRegistry) All() []Project {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Project(nil), r.projects...)
}

// Get returns the project called name.
func (r *ProjectRegistry) Get(name string) (Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// Add appends p unless a project with the same name exists. It reports
// whether the project was added.
func (r *ProjectRegistry) Add(ctx context.Context, p Project) (bool, error) {
	if strings.TrimSpace(p.Name) == "" {
		return false, types.NewError(types.ErrInvalidRequest, "project name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.projects {
		if existing.Name == p.Name {
			return false, nil
		}
	}
	next := append(append([]Project(nil), r.projects...), p)
	if r.path != "" {
		if err := writeJSON(ctx, r.path, projectsFile{Projects: next}); err != nil {
			return false, err
		}
	}
	r.projects = next
	r.logger.Info("project added", zap.String("name", p.Name), zap.String("directory", p.Directory))
	return true, nil
}
