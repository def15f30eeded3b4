// Package tool resolves agent tool references into bound API documents. A
// tool here is a read-only OpenAPI surface handed to the agent runtime, not an
// executable function.
package tool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/petparlor/triage/core"
)

// Provider loads the OpenAPI document backing an API resource.
type Provider interface {
	// LoadSpec returns the parsed document for the named resource. A missing
	// document is reported as (wrapped) core.ErrSpecNotFound.
	LoadSpec(resource string) (map[string]any, error)
}

// documentSchema is the minimal shape every loaded document must satisfy. It
// accepts both swagger 2.0 and openapi 3.x documents.
const documentSchema = `{
	"type": "object",
	"required": ["paths"],
	"properties": {
		"paths": {"type": "object"},
		"info": {"type": "object"}
	}
}`

// FileProvider loads documents from <root>/<resource>/swagger.json and caches
// parsed results per resource.
type FileProvider struct {
	root string

	mu    sync.RWMutex
	cache map[string]map[string]any

	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
}

var _ Provider = (*FileProvider)(nil)

// NewFileProvider creates a provider rooted at dir (e.g. "openapi").
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{
		root:  dir,
		cache: map[string]map[string]any{},
	}
}

func (p *FileProvider) compiledSchema() (*gojsonschema.Schema, error) {
	p.schemaOnce.Do(func() {
		p.schema, p.schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	})
	return p.schema, p.schemaErr
}

// LoadSpec implements Provider.
func (p *FileProvider) LoadSpec(resource string) (map[string]any, error) {
	p.mu.RLock()
	doc, ok := p.cache[resource]
	p.mu.RUnlock()
	if ok {
		return doc, nil
	}

	path := filepath.Join(p.root, resource, "swagger.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrSpecNotFound, path)
		}
		return nil, fmt.Errorf("read api document %s: %w", path, err)
	}

	schema, err := p.compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid JSON", core.ErrSpecNotFound, path)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("%w: %s is not an API document: %v", core.ErrSpecNotFound, path, result.Errors())
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode api document %s: %w", path, err)
	}

	p.mu.Lock()
	p.cache[resource] = doc
	p.mu.Unlock()
	return doc, nil
}

// Describe extracts a human-readable description from a loaded document,
// falling back from info.description to info.title.
func Describe(doc map[string]any) string {
	info, ok := doc["info"].(map[string]any)
	if !ok {
		return ""
	}
	if d, ok := info["description"].(string); ok && d != "" {
		return d
	}
	if t, ok := info["title"].(string); ok {
		return t
	}
	return ""
}

// Resolve binds every reference through the provider. The first missing or
// malformed document aborts resolution with a core.ErrToolResolution wrap, so
// an agent is never instantiated with a partial tool set.
func Resolve(p Provider, refs []core.ToolRef) ([]core.ToolBinding, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	bindings := make([]core.ToolBinding, 0, len(refs))
	for _, ref := range refs {
		doc, err := p.LoadSpec(ref.APIResource)
		if err != nil {
			return nil, fmt.Errorf("%w: tool %q (resource %q): %v", core.ErrToolResolution, ref.Name, ref.APIResource, err)
		}
		bindings = append(bindings, core.ToolBinding{
			Ref:         ref,
			Description: Describe(doc),
			Document:    doc,
		})
	}
	return bindings, nil
}

// StaticProvider serves documents from memory. Tests and examples use it to
// avoid touching the filesystem.
type StaticProvider struct {
	Docs map[string]map[string]any
}

// LoadSpec implements Provider.
func (p *StaticProvider) LoadSpec(resource string) (map[string]any, error) {
	doc, ok := p.Docs[resource]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSpecNotFound, resource)
	}
	return doc, nil
}
