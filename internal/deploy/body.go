package deploy

import (
	"encoding/json"
	"fmt"

	"github.com/user/cognitive/internal/integration"
	"github.com/user/cognitive/internal/platform"
)

// CreateIntegrationBody is the wire form of a local integration definition.
type CreateIntegrationBody struct {
	Name            string                                `json:"name"`
	Version         string                                `json:"version"`
	Title           string                                `json:"title,omitempty"`
	Description     string                                `json:"description,omitempty"`
	Icon            string                                `json:"icon,omitempty"`
	Readme          string                                `json:"readme,omitempty"`
	Configuration   platform.ConfigurationDef             `json:"configuration"`
	Configurations  map[string]platform.ConfigurationDef  `json:"configurations,omitempty"`
	Channels        map[string]platform.ChannelDef        `json:"channels,omitempty"`
	States          map[string]platform.StateDef          `json:"states,omitempty"`
	Events          map[string]platform.EventDef          `json:"events,omitempty"`
	Actions         map[string]platform.ActionDef         `json:"actions,omitempty"`
	Entities        map[string]platform.EntityDef         `json:"entities,omitempty"`
	User            platform.UserDef                      `json:"user"`
	Identifier      platform.Identifier                   `json:"identifier"`
	Interfaces      map[string]platform.InterfaceInstance `json:"interfaces,omitempty"`
	Attributes      map[string]string                     `json:"attributes,omitempty"`
	ExtraOperations json.RawMessage                       `json:"extraOperations,omitempty"`
}

type UpdateIntegrationBody struct {
	Title           string                            `json:"title,omitempty"`
	Description     string                            `json:"description,omitempty"`
	Icon            string                            `json:"icon,omitempty"`
	Readme          string                            `json:"readme,omitempty"`
	Configuration   ConfigurationUpdate               `json:"configuration"`
	Configurations  Patch[ConfigurationUpdate]        `json:"configurations,omitzero"`
	Channels        Patch[ChannelUpdate]              `json:"channels,omitzero"`
	States          Patch[platform.StateDef]          `json:"states,omitzero"`
	Events          Patch[EventUpdate]                `json:"events,omitzero"`
	Actions         Patch[ActionUpdate]               `json:"actions,omitzero"`
	Entities        Patch[platform.EntityDef]         `json:"entities,omitzero"`
	User            UserUpdate                        `json:"user"`
	Identifier      IdentifierUpdate                  `json:"identifier"`
	Interfaces      Patch[platform.InterfaceInstance] `json:"interfaces,omitzero"`
	Attributes      Patch[string]                     `json:"attributes,omitzero"`
	ExtraOperations json.RawMessage                   `json:"extraOperations,omitempty"`
}

type ConfigurationUpdate struct {
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description,omitempty"`
	Schema      json.RawMessage        `json:"schema,omitempty"`
	Identifier  IdentifierConfigUpdate `json:"identifier"`
}

type IdentifierConfigUpdate struct {
	LinkTemplateScript Optional[string] `json:"linkTemplateScript,omitzero"`
	Required           bool             `json:"required"`
}

type IdentifierUpdate struct {
	ExtractScript         Optional[string] `json:"extractScript,omitzero"`
	FallbackHandlerScript Optional[string] `json:"fallbackHandlerScript,omitzero"`
}

type ActionUpdate struct {
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	Billable    bool               `json:"billable,omitempty"`
	Cacheable   bool               `json:"cacheable,omitempty"`
	Input       platform.SchemaDef `json:"input"`
	Output      platform.SchemaDef `json:"output"`
	Attributes  Patch[string]      `json:"attributes,omitzero"`
}

type EventUpdate struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`
	Attributes  Patch[string]   `json:"attributes,omitzero"`
}

type ChannelUpdate struct {
	Title        string                     `json:"title,omitempty"`
	Description  string                     `json:"description,omitempty"`
	Messages     Patch[platform.MessageDef] `json:"messages"`
	Message      TagsUpdate                 `json:"message"`
	Conversation TagsUpdate                 `json:"conversation"`
}

type TagsUpdate struct {
	Tags Patch[platform.Tag] `json:"tags,omitzero"`
}

type UserUpdate struct {
	Tags Patch[platform.Tag] `json:"tags,omitzero"`
}

// PrepareCreateIntegrationBody converts every schema of the definition to its
// wire form.
func PrepareCreateIntegrationBody(def *integration.IntegrationDefinition) (*CreateIntegrationBody, error) {
	body := &CreateIntegrationBody{
		Name:        def.Name,
		Version:     def.Version,
		Title:       def.Title,
		Description: def.Description,
		Icon:        def.Icon,
		Readme:      def.Readme,
		User:        def.User,
		Identifier:  def.Identifier,
		Interfaces:  def.Interfaces,
		Attributes:  def.Attributes,
	}
	if def.Advanced != nil {
		body.ExtraOperations = def.Advanced.ExtraOperations
	}

	var err error
	if body.Configuration, err = configurationDef(def.Configuration); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	if len(def.Configurations) > 0 {
		body.Configurations = make(map[string]platform.ConfigurationDef, len(def.Configurations))
		for name, c := range def.Configurations {
			if body.Configurations[name], err = configurationDef(c); err != nil {
				return nil, fmt.Errorf("configuration %s: %w", name, err)
			}
		}
	}

	if def.Actions.Len() > 0 {
		body.Actions = make(map[string]platform.ActionDef, def.Actions.Len())
		for pair := def.Actions.Oldest(); pair != nil; pair = pair.Next() {
			a := pair.Value
			input, err := integration.ToWire(a.Input.Schema)
			if err != nil {
				return nil, fmt.Errorf("action %s input: %w", pair.Key, err)
			}
			output, err := integration.ToWire(a.Output.Schema)
			if err != nil {
				return nil, fmt.Errorf("action %s output: %w", pair.Key, err)
			}
			body.Actions[pair.Key] = platform.ActionDef{
				Title:       a.Title,
				Description: a.Description,
				Billable:    a.Billable,
				Cacheable:   a.Cacheable,
				Input:       platform.SchemaDef{Schema: input},
				Output:      platform.SchemaDef{Schema: output},
				Attributes:  a.Attributes,
			}
		}
	}

	if def.Events.Len() > 0 {
		body.Events = make(map[string]platform.EventDef, def.Events.Len())
		for pair := def.Events.Oldest(); pair != nil; pair = pair.Next() {
			e := pair.Value
			schema, err := integration.ToWire(e.Schema)
			if err != nil {
				return nil, fmt.Errorf("event %s: %w", pair.Key, err)
			}
			body.Events[pair.Key] = platform.EventDef{
				Title:       e.Title,
				Description: e.Description,
				Schema:      schema,
				Attributes:  e.Attributes,
			}
		}
	}

	if def.Channels.Len() > 0 {
		body.Channels = make(map[string]platform.ChannelDef, def.Channels.Len())
		for pair := def.Channels.Oldest(); pair != nil; pair = pair.Next() {
			ch := pair.Value
			messages := make(map[string]platform.MessageDef, ch.Messages.Len())
			for msg := ch.Messages.Oldest(); msg != nil; msg = msg.Next() {
				schema, err := integration.ToWire(msg.Value.Schema)
				if err != nil {
					return nil, fmt.Errorf("channel %s message %s: %w", pair.Key, msg.Key, err)
				}
				messages[msg.Key] = platform.MessageDef{Schema: schema}
			}
			body.Channels[pair.Key] = platform.ChannelDef{
				Title:        ch.Title,
				Description:  ch.Description,
				Messages:     messages,
				Message:      ch.Message,
				Conversation: ch.Conversation,
			}
		}
	}

	if len(def.States) > 0 {
		body.States = make(map[string]platform.StateDef, len(def.States))
		for name, s := range def.States {
			schema, err := integration.ToWire(s.Schema)
			if err != nil {
				return nil, fmt.Errorf("state %s: %w", name, err)
			}
			body.States[name] = platform.StateDef{Type: s.Type, Schema: schema}
		}
	}

	if len(def.Entities) > 0 {
		body.Entities = make(map[string]platform.EntityDef, len(def.Entities))
		for name, e := range def.Entities {
			schema, err := integration.ToWire(e.Schema)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", name, err)
			}
			body.Entities[name] = platform.EntityDef{Title: e.Title, Description: e.Description, Schema: schema}
		}
	}

	return body, nil
}

func configurationDef(c integration.ConfigurationDefinition) (platform.ConfigurationDef, error) {
	schema, err := integration.ToWire(c.Schema)
	if err != nil {
		return platform.ConfigurationDef{}, err
	}
	return platform.ConfigurationDef{
		Title:       c.Title,
		Description: c.Description,
		Schema:      schema,
		Identifier:  c.Identifier,
	}, nil
}

// PrepareUpdateIntegrationBody diffs a local body against the integration the
// platform currently holds. Anything the remote has and local lacks is
// removed, and scripts that only the remote still carries are sent as null.
func PrepareUpdateIntegrationBody(local *CreateIntegrationBody, remote *platform.Integration) *UpdateIntegrationBody {
	body := &UpdateIntegrationBody{
		Title:       local.Title,
		Description: local.Description,
		Icon:        local.Icon,
		Readme:      local.Readme,
		States:      Diff(local.States, remote.States),
		Entities:    Diff(local.Entities, remote.Entities),
		User:        UserUpdate{Tags: Diff(local.User.Tags, remote.User.Tags)},
		Interfaces:  Diff(local.Interfaces, remote.Interfaces),
		Attributes:  Diff(local.Attributes, remote.Attributes),
		// forwarded verbatim, never diffed
		ExtraOperations: local.ExtraOperations,
	}

	body.Actions = mapPatch(Diff(local.Actions, remote.Actions), func(name string, a platform.ActionDef) ActionUpdate {
		return ActionUpdate{
			Title:       a.Title,
			Description: a.Description,
			Billable:    a.Billable,
			Cacheable:   a.Cacheable,
			Input:       a.Input,
			Output:      a.Output,
			Attributes:  attributePatch(a.Attributes, remote.Actions, name, func(r platform.ActionDef) map[string]string { return r.Attributes }),
		}
	})
	body.Events = mapPatch(Diff(local.Events, remote.Events), func(name string, e platform.EventDef) EventUpdate {
		return EventUpdate{
			Title:       e.Title,
			Description: e.Description,
			Schema:      e.Schema,
			Attributes:  attributePatch(e.Attributes, remote.Events, name, func(r platform.EventDef) map[string]string { return r.Attributes }),
		}
	})

	body.Configuration = configurationUpdate(local.Configuration, &remote.Configuration)
	body.Configurations = mapPatch(Diff(local.Configurations, remote.Configurations), func(name string, c platform.ConfigurationDef) ConfigurationUpdate {
		var r *platform.ConfigurationDef
		if rc, ok := remote.Configurations[name]; ok {
			r = &rc
		}
		return configurationUpdate(c, r)
	})

	body.Identifier = IdentifierUpdate{
		ExtractScript:         script(local.Identifier.ExtractScript, remote.Identifier.ExtractScript),
		FallbackHandlerScript: script(local.Identifier.FallbackHandlerScript, remote.Identifier.FallbackHandlerScript),
	}

	body.Channels = channelsPatch(local.Channels, remote.Channels)
	return body
}

// attributePatch diffs an item's attributes against the remote item of the
// same name. Items new to the remote keep their attributes as they are.
func attributePatch[R any](local map[string]string, remote map[string]R, name string, attrs func(R) map[string]string) Patch[string] {
	r, ok := remote[name]
	if !ok {
		return Diff(local, map[string]string(nil))
	}
	return Diff(local, attrs(r))
}

func configurationUpdate(local platform.ConfigurationDef, remote *platform.ConfigurationDef) ConfigurationUpdate {
	u := ConfigurationUpdate{
		Title:       local.Title,
		Description: local.Description,
		Schema:      local.Schema,
		Identifier:  IdentifierConfigUpdate{Required: local.Identifier.Required},
	}
	var remoteScript string
	if remote != nil {
		remoteScript = remote.Identifier.LinkTemplateScript
	}
	u.Identifier.LinkTemplateScript = script(local.Identifier.LinkTemplateScript, remoteScript)
	if u.Identifier.LinkTemplateScript.IsNull() {
		u.Identifier.Required = false
	}
	return u
}

// script keeps a local script, nulls one only the remote still has, and
// otherwise leaves the field out.
func script(local, remote string) Optional[string] {
	switch {
	case local != "":
		return Some(local)
	case remote != "":
		return Null[string]()
	default:
		return Optional[string]{}
	}
}

func channelsPatch(local, remote map[string]platform.ChannelDef) Patch[ChannelUpdate] {
	return mapPatch(Diff(local, remote), func(name string, ch platform.ChannelDef) ChannelUpdate {
		r := remote[name] // zero for channels the remote does not have yet
		return ChannelUpdate{
			Title:        ch.Title,
			Description:  ch.Description,
			Messages:     Diff(ch.Messages, r.Messages),
			Message:      TagsUpdate{Tags: Diff(ch.Message.Tags, r.Message.Tags)},
			Conversation: TagsUpdate{Tags: Diff(ch.Conversation.Tags, r.Conversation.Tags)},
		}
	})
}
