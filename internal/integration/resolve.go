package integration

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/user/cognitive/internal/platform"
)

// EntityBinding binds an interface entity to a concrete entity of the
// implementing integration.
type EntityBinding struct {
	Name   string `json:"name"`
	Schema Schema `json:"schema"`
}

// Rename gives an interface item its name in the implementing integration.
type Rename struct {
	Name string `json:"name"`
}

type InterfaceExtensionInput struct {
	Package  InterfacePackage         `json:"package"`
	Entities map[string]EntityBinding `json:"entities"`
	Actions  map[string]Rename        `json:"actions,omitempty"`
	Events   map[string]Rename        `json:"events,omitempty"`
	Channels map[string]Rename        `json:"channels,omitempty"`
}

// ResolvedInterface holds concrete definitions keyed by their final names.
type ResolvedInterface struct {
	Actions  *orderedmap.OrderedMap[string, ActionDefinition]  `json:"actions"`
	Events   *orderedmap.OrderedMap[string, EventDefinition]   `json:"events"`
	Channels *orderedmap.OrderedMap[string, ChannelDefinition] `json:"channels"`
}

type InterfaceExtensionOutput struct {
	Resolved  ResolvedInterface          `json:"resolved"`
	Statement platform.InterfaceInstance `json:"statement"`
}

// ResolveInterface substitutes entity placeholders in every action, event and
// channel message of the package and applies the rename maps. The statement
// maps each original name to its final name. Inputs are not modified.
func ResolveInterface(in InterfaceExtensionInput) (*InterfaceExtensionOutput, error) {
	def := in.Package.Definition

	entities := make(map[string]Schema, len(in.Entities))
	statement := platform.InterfaceInstance{
		Name:     in.Package.Name,
		Version:  in.Package.Version,
		Entities: make(map[string]platform.NameRef, len(in.Entities)),
		Actions:  make(map[string]platform.NameRef, def.Actions.Len()),
		Events:   make(map[string]platform.NameRef, def.Events.Len()),
		Channels: make(map[string]platform.NameRef, def.Channels.Len()),
	}
	for key, binding := range in.Entities {
		entities[key] = binding.Schema
		statement.Entities[key] = platform.NameRef{Name: binding.Name}
	}

	resolved := ResolvedInterface{
		Actions:  orderedmap.New[string, ActionDefinition](),
		Events:   orderedmap.New[string, EventDefinition](),
		Channels: orderedmap.New[string, ChannelDefinition](),
	}

	for pair := def.Actions.Oldest(); pair != nil; pair = pair.Next() {
		name, action := pair.Key, pair.Value
		input, err := Dereference(action.Input.Schema, entities)
		if err != nil {
			return nil, fmt.Errorf("action %s input: %w", name, err)
		}
		output, err := Dereference(action.Output.Schema, entities)
		if err != nil {
			return nil, fmt.Errorf("action %s output: %w", name, err)
		}
		action.Input = SchemaDefinition{Schema: input}
		action.Output = SchemaDefinition{Schema: output}

		final := renamed(in.Actions, name)
		resolved.Actions.Set(final, action)
		statement.Actions[name] = platform.NameRef{Name: final}
	}

	for pair := def.Events.Oldest(); pair != nil; pair = pair.Next() {
		name, event := pair.Key, pair.Value
		schema, err := Dereference(event.Schema, entities)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", name, err)
		}
		event.Schema = schema

		final := renamed(in.Events, name)
		resolved.Events.Set(final, event)
		statement.Events[name] = platform.NameRef{Name: final}
	}

	for pair := def.Channels.Oldest(); pair != nil; pair = pair.Next() {
		name, channel := pair.Key, pair.Value
		messages := orderedmap.New[string, MessageDefinition](channel.Messages.Len())
		for msg := channel.Messages.Oldest(); msg != nil; msg = msg.Next() {
			schema, err := Dereference(msg.Value.Schema, entities)
			if err != nil {
				return nil, fmt.Errorf("channel %s message %s: %w", name, msg.Key, err)
			}
			message := msg.Value
			message.Schema = schema
			messages.Set(msg.Key, message)
		}
		channel.Messages = messages

		final := renamed(in.Channels, name)
		resolved.Channels.Set(final, channel)
		statement.Channels[name] = platform.NameRef{Name: final}
	}

	return &InterfaceExtensionOutput{Resolved: resolved, Statement: statement}, nil
}

func renamed(renames map[string]Rename, name string) string {
	if r, ok := renames[name]; ok && r.Name != "" {
		return r.Name
	}
	return name
}

// Extend resolves the interface and merges it into the integration. Items the
// integration already defines under the same name are kept. Bound entities
// missing from the integration are added, and the statement is recorded under
// the package name.
func (d *IntegrationDefinition) Extend(in InterfaceExtensionInput) (*InterfaceExtensionOutput, error) {
	out, err := ResolveInterface(in)
	if err != nil {
		return nil, fmt.Errorf("extending %s with %s@%s: %w", d.Name, in.Package.Name, in.Package.Version, err)
	}

	if d.Actions == nil {
		d.Actions = orderedmap.New[string, ActionDefinition]()
	}
	if d.Events == nil {
		d.Events = orderedmap.New[string, EventDefinition]()
	}
	if d.Channels == nil {
		d.Channels = orderedmap.New[string, ChannelDefinition]()
	}
	mergeMissing(d.Actions, out.Resolved.Actions)
	mergeMissing(d.Events, out.Resolved.Events)
	mergeMissing(d.Channels, out.Resolved.Channels)

	for _, binding := range in.Entities {
		if d.Entities == nil {
			d.Entities = make(map[string]EntityDefinition)
		}
		if _, ok := d.Entities[binding.Name]; !ok {
			d.Entities[binding.Name] = EntityDefinition{Schema: binding.Schema}
		}
	}

	if d.Interfaces == nil {
		d.Interfaces = make(map[string]platform.InterfaceInstance)
	}
	d.Interfaces[in.Package.Name] = out.Statement
	return out, nil
}

func mergeMissing[V any](dst, src *orderedmap.OrderedMap[string, V]) {
	for pair := src.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := dst.Get(pair.Key); !ok {
			dst.Set(pair.Key, pair.Value)
		}
	}
}
