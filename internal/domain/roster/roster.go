// Package roster holds the fixed list of entities (presidential candidates)
// whose programs are indexed, and resolves free-form names against it.
package roster

import (
	"fmt"
	"strings"

	"github.com/openprogramia/propuestas/internal/textnorm"
)

// Entity is one roster member. Name is the exact value stored in the
// "candidate" payload field.
type Entity struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Party   string   `json:"party,omitempty" yaml:"party"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
}

// Roster is immutable after New.
type Roster struct {
	entities []Entity
	folded   []foldedEntity
}

type foldedEntity struct {
	name    string
	aliases []string
}

// minPartialLen is the shortest input allowed to resolve by substring.
const minPartialLen = 4

// New validates entities and builds a Roster preserving their order.
func New(entities []Entity) (*Roster, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}
	r := &Roster{
		entities: make([]Entity, 0, len(entities)),
		folded:   make([]foldedEntity, 0, len(entities)),
	}
	seen := make(map[string]bool, len(entities))
	for i, e := range entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("roster entry %d: name is required", i)
		}
		key := textnorm.Normalize(name)
		if seen[key] {
			return nil, fmt.Errorf("roster entry %d: duplicate name %q", i, name)
		}
		seen[key] = true

		e.Name = name
		if e.ID == "" {
			e.ID = strings.ReplaceAll(key, " ", "-")
		}
		fe := foldedEntity{name: key}
		for _, a := range e.Aliases {
			if fa := textnorm.Normalize(a); fa != "" {
				fe.aliases = append(fe.aliases, fa)
			}
		}
		r.entities = append(r.entities, e)
		r.folded = append(r.folded, fe)
	}
	return r, nil
}

// All returns the entities in roster order. Callers must not mutate it.
func (r *Roster) All() []Entity { return r.entities }

// Names returns the entity names in roster order.
func (r *Roster) Names() []string {
	names := make([]string, len(r.entities))
	for i, e := range r.entities {
		names[i] = e.Name
	}
	return names
}

// Len returns the roster size.
func (r *Roster) Len() int { return len(r.entities) }

// Resolve maps a free-form name to a roster entity. It tries, in order:
// exact name or alias, surname (a trailing run of name tokens) and, for
// inputs of four runes or more, substring containment either way.
// The first entity in roster order wins within each step.
func (r *Roster) Resolve(name string) (Entity, bool) {
	in := textnorm.Normalize(name)
	if in == "" {
		return Entity{}, false
	}

	for i, fe := range r.folded {
		if fe.name == in {
			return r.entities[i], true
		}
		for _, a := range fe.aliases {
			if a == in {
				return r.entities[i], true
			}
		}
	}

	for i, fe := range r.folded {
		if strings.HasSuffix(fe.name, " "+in) {
			return r.entities[i], true
		}
	}

	if textnorm.RuneLen(in) >= minPartialLen {
		for i, fe := range r.folded {
			if strings.Contains(fe.name, in) || strings.Contains(in, fe.name) {
				return r.entities[i], true
			}
		}
	}

	return Entity{}, false
}

// ResolveAll resolves every name. Resolved entities are deduplicated and
// keep the order of first mention; unresolved names are returned verbatim.
func (r *Roster) ResolveAll(names []string) (resolved []Entity, unresolved []string) {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		e, ok := r.Resolve(n)
		if !ok {
			unresolved = append(unresolved, n)
			continue
		}
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		resolved = append(resolved, e)
	}
	return resolved, unresolved
}

// Default is the 2025 roster of presidential candidates.
func Default() []Entity {
	return []Entity{
		{ID: "mayne-nicholls", Name: "Harold Mayne-Nicholls", Party: "Independiente"},
		{ID: "enriquez-ominami", Name: "Marco Enríquez-Ominami", Party: "Independiente", Aliases: []string{"MEO"}},
		{ID: "jara", Name: "Jeannette Jara", Party: "Partido Comunista"},
		{ID: "kaiser", Name: "Johannes Kaiser", Party: "Partido Nacional Libertario"},
		{ID: "kast", Name: "José Antonio Kast", Party: "Partido Republicano", Aliases: []string{"JAK"}},
		{ID: "matthei", Name: "Evelyn Matthei", Party: "Unión Demócrata Independiente"},
		{ID: "artes", Name: "Eduardo Artés", Party: "Partido Comunista Chileno (Acción Proletaria)"},
		{ID: "parisi", Name: "Franco Parisi", Party: "Partido de la Gente"},
	}
}
