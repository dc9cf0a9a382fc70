// Package asyncapi validates CloudEvents payloads against the schemas of an
// AsyncAPI document. A schema is bound to an event type through its
// x-event-type extension.
package asyncapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

const eventTypeExtension = "x-event-type"

// EventValidator validates CloudEvents against AsyncAPI schemas.
type EventValidator struct {
	schemas  map[string]*jsonschema.Schema
	channels map[string]string
}

// CloudEvent is the envelope as it appears on the wire.
type CloudEvent struct {
	SpecVersion     string `json:"specversion"`
	Type            string `json:"type"`
	Source          string `json:"source"`
	Subject         string `json:"subject,omitempty"`
	ID              string `json:"id"`
	Time            string `json:"time,omitempty"`
	DataContentType string `json:"datacontenttype,omitempty"`
	Data            any    `json:"data,omitempty"`
}

// Document holds the parts of an AsyncAPI document the validator reads.
type Document struct {
	AsyncAPI   string             `yaml:"asyncapi"`
	Info       Info               `yaml:"info"`
	Channels   map[string]Channel `yaml:"channels"`
	Components Components         `yaml:"components"`
}

// Info is the AsyncAPI info section.
type Info struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// Channel is an AsyncAPI channel.
type Channel struct {
	Address  string         `yaml:"address"`
	Messages map[string]any `yaml:"messages"`
}

// Components holds reusable schemas.
type Components struct {
	Schemas map[string]any `yaml:"schemas"`
}

// NewEventValidator loads the AsyncAPI document at path.
func NewEventValidator(path string) (*EventValidator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read AsyncAPI spec: %w", err)
	}
	return NewEventValidatorFromBytes(data)
}

// NewEventValidatorFromBytes builds a validator from an in-memory document.
func NewEventValidatorFromBytes(specBytes []byte) (*EventValidator, error) {
	var spec Document
	if err := yaml.Unmarshal(specBytes, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse AsyncAPI spec: %w", err)
	}

	v := &EventValidator{
		schemas:  make(map[string]*jsonschema.Schema),
		channels: make(map[string]string, len(spec.Channels)),
	}
	for name, channel := range spec.Channels {
		v.channels[name] = channel.Address
	}

	compiler := jsonschema.NewCompiler()
	for name, raw := range spec.Components.Schemas {
		schemaMap, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		eventType, _ := schemaMap[eventTypeExtension].(string)
		if eventType == "" {
			continue
		}

		// Round-trip through JSON so the compiler sees plain JSON values.
		encoded, err := json.Marshal(schemaMap)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}

		uri := "asyncapi://schemas/" + name
		if err := compiler.AddResource(uri, doc); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		compiled, err := compiler.Compile(uri)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		v.schemas[eventType] = compiled
	}
	return v, nil
}

// ValidateEvent checks the envelope and validates the payload against the
// schema registered for its type.
func (v *EventValidator) ValidateEvent(event CloudEvent) error {
	if event.SpecVersion != "1.0" {
		return fmt.Errorf("unsupported specversion %q", event.SpecVersion)
	}
	if event.ID == "" || event.Source == "" {
		return fmt.Errorf("event id and source are required")
	}
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}

	schema, ok := v.schemas[event.Type]
	if !ok {
		return fmt.Errorf("no schema found for event type: %s", event.Type)
	}
	if event.Data == nil {
		return fmt.Errorf("event data is required")
	}

	encoded, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	data, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to decode event data: %w", err)
	}

	if err := schema.Validate(data); err != nil {
		return fmt.Errorf("event data validation failed for type %s: %w", event.Type, err)
	}
	return nil
}

// ValidateEventJSON validates a CloudEvent from its JSON encoding.
func (v *EventValidator) ValidateEventJSON(eventJSON []byte) error {
	var event CloudEvent
	if err := json.Unmarshal(eventJSON, &event); err != nil {
		return fmt.Errorf("failed to parse CloudEvent: %w", err)
	}
	return v.ValidateEvent(event)
}

// EventTypes returns the event types that have a schema, sorted.
func (v *EventValidator) EventTypes() []string {
	types := make([]string, 0, len(v.schemas))
	for eventType := range v.schemas {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

// ChannelAddress returns the address of the named channel.
func (v *EventValidator) ChannelAddress(channel string) (string, bool) {
	address, ok := v.channels[channel]
	return address, ok
}
