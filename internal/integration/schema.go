package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Schema is a JSON schema node. Interface definitions embed entity
// placeholders (see EntityRef) that Dereference replaces with concrete schemas.
type Schema = *jsonschema.Schema

const entityRefPrefix = "#/entities/"

var ErrUnresolvedEntity = errors.New("unresolved entity")

// UnresolvedEntityError reports a placeholder with no binding.
type UnresolvedEntityError struct {
	Entity string
	Path   string
}

func (e *UnresolvedEntityError) Error() string {
	return fmt.Sprintf("unresolved entity %q at %s", e.Entity, e.Path)
}

func (e *UnresolvedEntityError) Unwrap() error {
	return ErrUnresolvedEntity
}

// SchemaFor reflects T into an inline schema without $defs or $id.
func SchemaFor[T any]() Schema {
	r := &jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
	}
	s := r.Reflect(new(T))
	s.Version = ""
	return s
}

// EntityRef returns a placeholder that stands for the named entity.
func EntityRef(name string) Schema {
	return &jsonschema.Schema{Ref: entityRefPrefix + name}
}

// EntityName reports the entity a placeholder refers to.
func EntityName(s Schema) (string, bool) {
	if s == nil || !strings.HasPrefix(s.Ref, entityRefPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s.Ref, entityRefPrefix), true
}

// Dereference returns a copy of schema with every entity placeholder replaced
// by a copy of the bound entity schema. The input is never modified.
func Dereference(schema Schema, entities map[string]Schema) (Schema, error) {
	r := &resolver{entities: entities, active: map[string]bool{}}
	return r.node(schema, "#")
}

// ToWire encodes a fully resolved schema. It fails if a placeholder is left.
func ToWire(schema Schema) (json.RawMessage, error) {
	if schema == nil {
		return nil, nil
	}
	resolved, err := Dereference(schema, nil)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	return data, nil
}

type resolver struct {
	entities map[string]Schema
	active   map[string]bool
}

func (r *resolver) node(s Schema, path string) (Schema, error) {
	if s == nil {
		return nil, nil
	}

	if name, ok := EntityName(s); ok {
		bound, found := r.entities[name]
		if !found || bound == nil {
			return nil, &UnresolvedEntityError{Entity: name, Path: path}
		}
		if r.active[name] {
			return nil, fmt.Errorf("entity %q refers to itself at %s", name, path)
		}
		r.active[name] = true
		defer delete(r.active, name)
		return r.node(bound, path)
	}

	cp := *s
	cp.Required = slices.Clone(s.Required)
	cp.Enum = slices.Clone(s.Enum)
	cp.Examples = slices.Clone(s.Examples)
	cp.Extras = maps.Clone(s.Extras)
	cp.DependentRequired = maps.Clone(s.DependentRequired)

	var err error
	if cp.Definitions, err = r.dict(s.Definitions, path+"/$defs"); err != nil {
		return nil, err
	}
	if cp.AllOf, err = r.list(s.AllOf, path+"/allOf"); err != nil {
		return nil, err
	}
	if cp.AnyOf, err = r.list(s.AnyOf, path+"/anyOf"); err != nil {
		return nil, err
	}
	if cp.OneOf, err = r.list(s.OneOf, path+"/oneOf"); err != nil {
		return nil, err
	}
	if cp.PrefixItems, err = r.list(s.PrefixItems, path+"/prefixItems"); err != nil {
		return nil, err
	}
	if cp.DependentSchemas, err = r.dict(s.DependentSchemas, path+"/dependentSchemas"); err != nil {
		return nil, err
	}
	if cp.PatternProperties, err = r.dict(s.PatternProperties, path+"/patternProperties"); err != nil {
		return nil, err
	}

	singles := []struct {
		dst  **jsonschema.Schema
		src  Schema
		name string
	}{
		{&cp.Not, s.Not, "not"},
		{&cp.If, s.If, "if"},
		{&cp.Then, s.Then, "then"},
		{&cp.Else, s.Else, "else"},
		{&cp.Items, s.Items, "items"},
		{&cp.Contains, s.Contains, "contains"},
		{&cp.AdditionalProperties, s.AdditionalProperties, "additionalProperties"},
		{&cp.PropertyNames, s.PropertyNames, "propertyNames"},
		{&cp.ContentSchema, s.ContentSchema, "contentSchema"},
	}
	for _, sub := range singles {
		if *sub.dst, err = r.node(sub.src, path+"/"+sub.name); err != nil {
			return nil, err
		}
	}

	if s.Properties != nil {
		props := orderedmap.New[string, *jsonschema.Schema](s.Properties.Len())
		for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
			v, err := r.node(pair.Value, path+"/properties/"+pair.Key)
			if err != nil {
				return nil, err
			}
			props.Set(pair.Key, v)
		}
		cp.Properties = props
	}

	return &cp, nil
}

func (r *resolver) list(in []*jsonschema.Schema, path string) ([]*jsonschema.Schema, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]*jsonschema.Schema, len(in))
	for i, s := range in {
		v, err := r.node(s, fmt.Sprintf("%s/%d", path, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (r *resolver) dict(in map[string]*jsonschema.Schema, path string) (map[string]*jsonschema.Schema, error) {
	if in == nil {
		return nil, nil
	}
	out := make(map[string]*jsonschema.Schema, len(in))
	for _, k := range slices.Sorted(maps.Keys(in)) {
		v, err := r.node(in[k], path+"/"+k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
