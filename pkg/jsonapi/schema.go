package jsonapi

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gosimple/slug"
)

type Cardinality int

const (
	SINGULAR Cardinality = iota + 1
	PLURAL
)

func (c Cardinality) String() string {
	switch c {
	case SINGULAR:
		return "singular"
	case PLURAL:
		return "plural"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}

type RelationshipDef struct {
	Type        string
	Cardinality Cardinality
}

/*
Schema
Describes the shape of a resource type. Attributes maps every attribute
name to its default value; the default is filled in on records decoded from
responses that omit the attribute. Path, if set, replaces the collection
path segment otherwise derived from the type name.
*/
type Schema struct {
	Attributes    map[string]interface{}
	Relationships map[string]RelationshipDef
	Path          string
}

func (s Schema) clone() Schema {
	result := Schema{
		Attributes:    make(map[string]interface{}, len(s.Attributes)),
		Relationships: make(map[string]RelationshipDef, len(s.Relationships)),
		Path:          s.Path,
	}
	for key, value := range s.Attributes {
		result.Attributes[key] = copyValue(value)
	}
	for key, value := range s.Relationships {
		result.Relationships[key] = value
	}
	return result
}

func (s Schema) validate(Type string) error {
	if !slug.IsSlug(Type) {
		return &SchemaError{
			Type:   Type,
			Reason: "type name must be a lowercase slug",
		}
	}
	if strings.Contains(s.Path, "/") || isDotSegment(s.Path) {
		return &SchemaError{
			Type:   Type,
			Reason: fmt.Sprintf("path '%s' must be a single segment", s.Path),
		}
	}
	for name := range s.Attributes {
		if name == "" || name == "id" || name == "type" {
			return &SchemaError{
				Type:   Type,
				Reason: fmt.Sprintf("'%s' is not a valid attribute name", name),
			}
		}
	}
	for name, definition := range s.Relationships {
		if name == "" || name == "id" || name == "type" {
			return &SchemaError{
				Type:   Type,
				Reason: fmt.Sprintf("'%s' is not a valid relationship name", name),
			}
		}
		if _, exists := s.Attributes[name]; exists {
			return &SchemaError{
				Type: Type,
				Reason: fmt.Sprintf(
					"'%s' is both an attribute and a relationship", name,
				),
			}
		}
		if definition.Type == "" {
			return &SchemaError{
				Type:   Type,
				Reason: fmt.Sprintf("relationship '%s' has no related type", name),
			}
		}
		if definition.Cardinality != SINGULAR &&
			definition.Cardinality != PLURAL {
			return &SchemaError{
				Type: Type,
				Reason: fmt.Sprintf(
					"relationship '%s' has invalid cardinality %s",
					name, definition.Cardinality,
				),
			}
		}
	}
	return nil
}

/*
Registry
Holds the schemas of one client. Schemas can only be defined once; a second
definition of the same type fails with a *DuplicateSchemaError.
*/
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

func (r *Registry) Define(Type string, schema Schema) error {
	err := schema.validate(Type)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schemas == nil {
		r.schemas = make(map[string]Schema)
	}
	if _, exists := r.schemas[Type]; exists {
		return &DuplicateSchemaError{Type: Type}
	}
	r.schemas[Type] = schema.clone()
	return nil
}

// Lookup returns a copy of the schema registered for 'Type'
func (r *Registry) Lookup(Type string) (Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, exists := r.schemas[Type]
	if !exists {
		return Schema{}, &UnknownTypeError{Type: Type}
	}
	return schema.clone(), nil
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]string, 0, len(r.schemas))
	for Type := range r.schemas {
		result = append(result, Type)
	}
	return result
}

func copyValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(typed))
		for key, item := range typed {
			result[key] = copyValue(item)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(typed))
		for i, item := range typed {
			result[i] = copyValue(item)
		}
		return result
	default:
		return value
	}
}
