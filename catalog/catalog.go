// catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Answer is the tri-state result of an attribute lookup.
type Answer string

const (
	AnswerYes   Answer = "yes"
	AnswerNo    Answer = "no"
	AnswerMaybe Answer = "maybe"
)

// Entity 是一个可猜测的目标对象。加载后不可变。
type Entity struct {
	Name       string            `json:"name"`
	Attributes map[string]Answer `json:"attributes"`
}

// Catalog holds the fixed set of guessable entities. It is read-only and
// safely shared across all rooms.
type Catalog struct {
	entities []*Entity
}

// New validates the entity list and builds a catalog. Names must be unique
// case-insensitively and every attribute value must be a valid Answer.
func New(entities []*Entity) (*Catalog, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one entity")
	}

	seen := make(map[string]bool, len(entities))
	for _, e := range entities {
		name := strings.ToLower(strings.TrimSpace(e.Name))
		if name == "" {
			return nil, fmt.Errorf("catalog entity with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate catalog entity: %s", e.Name)
		}
		seen[name] = true

		for attr, v := range e.Attributes {
			switch v {
			case AnswerYes, AnswerNo, AnswerMaybe:
			default:
				return nil, fmt.Errorf("entity %s attribute %s has invalid value %q", e.Name, attr, v)
			}
		}
	}

	return &Catalog{entities: entities}, nil
}

// Load reads an entity list from a JSON file, or returns the built-in
// catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entities []*Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	return New(entities)
}

func (c *Catalog) Len() int {
	return len(c.entities)
}

// Entities returns the full entity list. Callers must not mutate it.
func (c *Catalog) Entities() []*Entity {
	return c.entities
}

// Available returns the entities whose names are not in the used set. The
// used set is keyed by lowercase name.
func (c *Catalog) Available(used map[string]bool) []*Entity {
	available := make([]*Entity, 0, len(c.entities))
	for _, e := range c.entities {
		if !used[strings.ToLower(e.Name)] {
			available = append(available, e)
		}
	}
	return available
}

// Default 返回内置的对象目录
func Default() *Catalog {
	cat, err := New(defaultEntities())
	if err != nil {
		panic("invalid built-in catalog: " + err.Error())
	}
	return cat
}

func defaultEntities() []*Entity {
	yes, no, maybe := AnswerYes, AnswerNo, AnswerMaybe

	// attribute order: isAlive, isFood, isElectronic, isBiggerThanHand,
	// isPortable, isAnimal, isVehicle, isIndoor, isOutdoor
	attrs := func(values ...Answer) map[string]Answer {
		keys := []string{
			"isAlive", "isFood", "isElectronic", "isBiggerThanHand",
			"isPortable", "isAnimal", "isVehicle", "isIndoor", "isOutdoor",
		}
		m := make(map[string]Answer, len(keys))
		for i, k := range keys {
			m[k] = values[i]
		}
		return m
	}

	return []*Entity{
		{Name: "apple", Attributes: attrs(no, yes, no, no, yes, no, no, yes, yes)},
		{Name: "cat", Attributes: attrs(yes, no, no, no, maybe, yes, no, yes, yes)},
		{Name: "phone", Attributes: attrs(no, no, yes, no, yes, no, no, yes, yes)},
		{Name: "car", Attributes: attrs(no, no, yes, yes, no, no, yes, no, yes)},
		{Name: "book", Attributes: attrs(no, no, no, no, yes, no, no, yes, yes)},
		{Name: "pizza", Attributes: attrs(no, yes, no, yes, maybe, no, no, yes, no)},
		{Name: "laptop", Attributes: attrs(no, no, yes, no, yes, no, no, yes, yes)},
	}
}
