// Copyright Contributors to the Orchestrator project

// Package template renders the file set for a run's ConfigMap from a mounted directory of
// text/template files.
package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"
)

// Kind distinguishes the two template sets.
type Kind string

const (
	// KindDocs selects the DocsRun template set.
	KindDocs Kind = "docs"
	// KindCode selects the CodeRun template set.
	KindCode Kind = "code"
)

// hookPrefix returns the logical-name prefix that marks a template as a hook script for kind.
func hookPrefix(kind Kind) string {
	return string(kind) + "-hooks-"
}

// sharedLogicalNames are produced for every run regardless of kind.
var sharedLogicalNames = []string{"container.sh", "CLAUDE.md", "settings.json"}

// kindLogicalNames lists the additional logical outputs specific to a kind.
var kindLogicalNames = map[Kind][]string{
	KindDocs: {"prompt.md"},
	KindCode: {"mcp.json", "coding-guidelines.md", "code-hosting-guidelines.md"},
}

// Tool is one entry of the docs tool catalog embedded in a DocsRun prompt.
type Tool struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Context is the template execution context: the flattened run spec plus derived values.
type Context struct {
	Name              string
	Namespace         string
	Model             string
	RepositoryUrl     string
	WorkingDirectory  string
	ContinueSession   bool
	OverwriteMemory   bool

	// CodeRun-only fields; zero-valued for DocsRun.
	TaskId         uint32
	Service        string
	ContextVersion int32
	DocsBranch     string
	Env            map[string]string

	// SourceBranch and Tools are DocsRun-only and zero-valued for CodeRun; RenderedAt is
	// stamped on every render of either kind.
	SourceBranch string
	Tools        []Tool
	RenderedAt   time.Time
}

// ToolCount returns the number of catalog tools available to a docs prompt.
func (c Context) ToolCount() int {
	return len(c.Tools)
}

// Renderer loads and caches a kind's template set from a mounted directory.
type Renderer struct {
	kind      Kind
	templates map[string]*template.Template
}

// logicalToFileName maps a logical name's path separators to the on-disk dash convention.
func logicalToFileName(logical string) string {
	return strings.ReplaceAll(logical, "/", "-")
}

// NewRenderer reads dir once (subdirectories are skipped), parsing every template file it finds
// and indexing it by its file name; lookups map a logical name to that file name with
// logicalToFileName.
func NewRenderer(kind Kind, dir string) (*Renderer, error) {
	r := &Renderer{kind: kind, templates: map[string]*template.Template{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading template directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		contents, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading template file %s: %w", path, err)
		}
		tmpl, err := template.New(entry.Name()).Parse(string(contents))
		if err != nil {
			return nil, fmt.Errorf("parsing template file %s: %w", path, err)
		}
		r.templates[entry.Name()] = tmpl
	}

	return r, nil
}

func (r *Renderer) lookup(logical string) (*template.Template, bool) {
	tmpl, ok := r.templates[logicalToFileName(logical)]
	return tmpl, ok
}

func (r *Renderer) render(logical string, ctx Context) (string, error) {
	tmpl, ok := r.lookup(logical)
	if !ok {
		return "", fmt.Errorf("required template %q not found", logical)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("rendering template %q: %w", logical, err)
	}
	return buf.String(), nil
}

// hookLogicalNames returns the sorted set of logical names in this renderer's template set
// that begin with the kind-specific hook prefix.
func (r *Renderer) hookLogicalNames() []string {
	prefix := hookPrefix(r.kind)
	var names []string
	for fileName := range r.templates {
		logical := fileName
		if strings.HasPrefix(logical, prefix) {
			names = append(names, logical)
		}
	}
	sort.Strings(names)
	return names
}

// Render produces the full ConfigMap data map for ctx: all shared logical outputs, the kind's
// additional outputs, and any hook scripts present in the template set. A rendering failure
// (missing required template, template execution error) is returned verbatim; callers must
// create no objects when this happens.
func (r *Renderer) Render(ctx Context) (map[string]string, error) {
	data := map[string]string{}

	logicalNames := append([]string{}, sharedLogicalNames...)
	logicalNames = append(logicalNames, kindLogicalNames[r.kind]...)

	for _, logical := range logicalNames {
		rendered, err := r.render(logical, ctx)
		if err != nil {
			return nil, err
		}
		data[logical] = rendered
	}

	for _, logical := range r.hookLogicalNames() {
		rendered, err := r.render(logical, ctx)
		if err != nil {
			return nil, err
		}
		data["hooks-"+strings.TrimPrefix(logical, hookPrefix(r.kind))] = rendered
	}

	return data, nil
}
