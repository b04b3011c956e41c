package platform

import (
	"encoding/json"
	"time"
)

// Tag documents a user, message or conversation tag.
type Tag struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// SchemaDef wraps a JSON schema on the wire.
type SchemaDef struct {
	Schema json.RawMessage `json:"schema"`
}

type ActionDef struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Billable    bool              `json:"billable,omitempty"`
	Cacheable   bool              `json:"cacheable,omitempty"`
	Input       SchemaDef         `json:"input"`
	Output      SchemaDef         `json:"output"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type EventDef struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Schema      json.RawMessage   `json:"schema"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

type StateDef struct {
	Type   string          `json:"type"`
	Schema json.RawMessage `json:"schema"`
}

type EntityDef struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`
}

type MessageDef struct {
	Schema json.RawMessage `json:"schema"`
}

// Tags is the tag table of a channel's messages or conversations.
type Tags struct {
	Tags map[string]Tag `json:"tags,omitempty"`
}

type ChannelDef struct {
	Title        string                `json:"title,omitempty"`
	Description  string                `json:"description,omitempty"`
	Messages     map[string]MessageDef `json:"messages"`
	Message      Tags                  `json:"message"`
	Conversation Tags                  `json:"conversation"`
}

// IdentifierConfig controls how users link their accounts.
type IdentifierConfig struct {
	LinkTemplateScript string `json:"linkTemplateScript,omitempty"`
	Required           bool   `json:"required"`
}

type ConfigurationDef struct {
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	Schema      json.RawMessage  `json:"schema,omitempty"`
	Identifier  IdentifierConfig `json:"identifier"`
}

// Identifier holds the scripts that extract and route user identities.
type Identifier struct {
	ExtractScript         string `json:"extractScript,omitempty"`
	FallbackHandlerScript string `json:"fallbackHandlerScript,omitempty"`
}

type UserDef struct {
	Tags map[string]Tag `json:"tags,omitempty"`
}

// NameRef maps an interface-local name to its name in the integration.
type NameRef struct {
	Name string `json:"name"`
}

// InterfaceInstance records how an integration implements an interface.
type InterfaceInstance struct {
	ID       string             `json:"id,omitempty"`
	Name     string             `json:"name"`
	Version  string             `json:"version"`
	Entities map[string]NameRef `json:"entities"`
	Actions  map[string]NameRef `json:"actions"`
	Events   map[string]NameRef `json:"events"`
	Channels map[string]NameRef `json:"channels"`
}

// Integration is an integration as stored by the platform.
type Integration struct {
	ID             string                       `json:"id"`
	Name           string                       `json:"name"`
	Version        string                       `json:"version"`
	Title          string                       `json:"title,omitempty"`
	Description    string                       `json:"description,omitempty"`
	Icon           string                       `json:"icon,omitempty"`
	Readme         string                       `json:"readme,omitempty"`
	Configuration  ConfigurationDef             `json:"configuration"`
	Configurations map[string]ConfigurationDef  `json:"configurations"`
	Channels       map[string]ChannelDef        `json:"channels"`
	States         map[string]StateDef          `json:"states"`
	Events         map[string]EventDef          `json:"events"`
	Actions        map[string]ActionDef         `json:"actions"`
	Entities       map[string]EntityDef         `json:"entities"`
	User           UserDef                      `json:"user"`
	Identifier     Identifier                   `json:"identifier"`
	Interfaces     map[string]InterfaceInstance `json:"interfaces"`
	Attributes     map[string]string            `json:"attributes"`
	CreatedAt      time.Time                    `json:"createdAt"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
}
