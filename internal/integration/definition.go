package integration

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/user/cognitive/internal/platform"
)

// SchemaDefinition wraps an action input or output schema.
type SchemaDefinition struct {
	Schema Schema `json:"schema"`
}

type ActionDefinition struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Billable    bool              `json:"billable,omitempty"`
	Cacheable   bool              `json:"cacheable,omitempty"`
	Input       SchemaDefinition  `json:"input"`
	Output      SchemaDefinition  `json:"output"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type EventDefinition struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Schema      Schema            `json:"schema"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type MessageDefinition struct {
	Schema Schema `json:"schema"`
}

// ChannelDefinition groups messages. Message names are scoped by the channel.
type ChannelDefinition struct {
	Title        string                                            `json:"title,omitempty"`
	Description  string                                            `json:"description,omitempty"`
	Messages     *orderedmap.OrderedMap[string, MessageDefinition] `json:"messages"`
	Message      platform.Tags                                     `json:"message"`
	Conversation platform.Tags                                     `json:"conversation"`
}

type StateDefinition struct {
	Type   string `json:"type"`
	Schema Schema `json:"schema"`
}

type EntityDefinition struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Schema      Schema `json:"schema"`
}

type ConfigurationDefinition struct {
	Title       string                    `json:"title,omitempty"`
	Description string                    `json:"description,omitempty"`
	Schema      Schema                    `json:"schema,omitempty"`
	Identifier  platform.IdentifierConfig `json:"identifier"`
}

// IntegrationDefinition is the local, schema-bearing description of an
// integration. Actions, events and channels keep their declaration order.
type IntegrationDefinition struct {
	Name           string                                            `json:"name"`
	Version        string                                            `json:"version"`
	Title          string                                            `json:"title,omitempty"`
	Description    string                                            `json:"description,omitempty"`
	Icon           string                                            `json:"icon,omitempty"`
	Readme         string                                            `json:"readme,omitempty"`
	Configuration  ConfigurationDefinition                           `json:"configuration"`
	Configurations map[string]ConfigurationDefinition                `json:"configurations,omitempty"`
	Channels       *orderedmap.OrderedMap[string, ChannelDefinition] `json:"channels,omitempty"`
	States         map[string]StateDefinition                        `json:"states,omitempty"`
	Events         *orderedmap.OrderedMap[string, EventDefinition]   `json:"events,omitempty"`
	Actions        *orderedmap.OrderedMap[string, ActionDefinition]  `json:"actions,omitempty"`
	Entities       map[string]EntityDefinition                       `json:"entities,omitempty"`
	User           platform.UserDef                                  `json:"user"`
	Identifier     platform.Identifier                               `json:"identifier"`
	Interfaces     map[string]platform.InterfaceInstance             `json:"interfaces,omitempty"`
	Attributes     map[string]string                                 `json:"attributes,omitempty"`
	Advanced       *Advanced                                         `json:"__advanced,omitempty"`
}

// Advanced holds settings passed to the platform untouched.
type Advanced struct {
	// ExtraOperations is opaque to this module and forwarded as is on
	// create and update.
	ExtraOperations json.RawMessage `json:"extraOperations,omitempty"`
}

// InterfaceDefinition is a reusable contract. Its schemas reference the
// entities it declares through EntityRef placeholders.
type InterfaceDefinition struct {
	Entities map[string]EntityDefinition                       `json:"entities,omitempty"`
	Actions  *orderedmap.OrderedMap[string, ActionDefinition]  `json:"actions,omitempty"`
	Events   *orderedmap.OrderedMap[string, EventDefinition]   `json:"events,omitempty"`
	Channels *orderedmap.OrderedMap[string, ChannelDefinition] `json:"channels,omitempty"`
}

type InterfacePackage struct {
	Name       string              `json:"name"`
	Version    string              `json:"version"`
	Definition InterfaceDefinition `json:"definition"`
}
