package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/tablekit/partgen/pkg/partition"
)

// MemoryNamer implements the naming collaborator over an in-memory set
// of existing relation names, for tests and offline expansion. It
// treats all names as one namespace. Every name it hands out is
// recorded, so later choices de-duplicate against earlier ones the same
// way a live catalog would after each CREATE.
type MemoryNamer struct {
	mu       sync.Mutex
	existing map[string]struct{}
}

// NewMemoryNamer seeds the namer with relation names that already exist
// in the target namespace.
func NewMemoryNamer(existing ...string) *MemoryNamer {
	m := &MemoryNamer{existing: make(map[string]struct{}, len(existing))}
	for _, name := range existing {
		m.existing[name] = struct{}{}
	}
	return m
}

func (m *MemoryNamer) MakeObjectName(name1, name2, label string) string {
	name := MakeObjectName(name1, name2, label)
	m.mu.Lock()
	// Named children will exist once created; record them so unnamed
	// siblings chosen later cannot collide.
	m.existing[name] = struct{}{}
	m.mu.Unlock()
	return name
}

func (m *MemoryNamer) ChooseRelationName(ctx context.Context, name1, name2, label, namespace string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pass := 0; ; pass++ {
		modlabel := label
		if pass > 0 {
			modlabel = fmt.Sprintf("%s%d", label, pass)
		}
		name := MakeObjectName(name1, name2, modlabel)
		if _, taken := m.existing[name]; !taken {
			m.existing[name] = struct{}{}
			return name, nil
		}
	}
}

type templateKey struct {
	relation string
	level    int
}

// MemoryTemplateStore keeps sub-partition templates in process memory.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[templateKey]*partition.Definition
}

func NewMemoryTemplateStore() *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: make(map[templateKey]*partition.Definition)}
}

// StoreTemplate records a template for (relation, level). Storing a key
// that already holds a template is a no-op.
func (s *MemoryTemplateStore) StoreTemplate(ctx context.Context, relation string, level int, def *partition.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := templateKey{relation: relation, level: level}
	if _, ok := s.templates[key]; ok {
		return nil
	}
	s.templates[key] = def
	return nil
}

// GetTemplate returns the stored template, or nil when none exists.
func (s *MemoryTemplateStore) GetTemplate(ctx context.Context, relation string, level int) (*partition.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates[templateKey{relation: relation, level: level}], nil
}

func (s *MemoryTemplateStore) RemoveTemplate(ctx context.Context, relation string, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.templates, templateKey{relation: relation, level: level})
	return nil
}

// MemoryAccessor resolves relations from a fixed in-memory set, keyed
// by namespace-qualified name.
type MemoryAccessor struct {
	mu        sync.RWMutex
	relations map[string]*partition.Relation
}

func NewMemoryAccessor(relations ...*partition.Relation) *MemoryAccessor {
	a := &MemoryAccessor{relations: make(map[string]*partition.Relation, len(relations))}
	for _, rel := range relations {
		a.relations[rel.Namespace+"."+rel.Name] = rel
	}
	return a
}

func (a *MemoryAccessor) LookupRelation(ctx context.Context, namespace, name string) (*partition.Relation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rel, ok := a.relations[namespace+"."+name]
	if !ok {
		return nil, fmt.Errorf("relation %q does not exist", namespace+"."+name)
	}
	return rel, nil
}
