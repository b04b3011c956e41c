package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadInterfacePackage reads an interface package from a JSON or YAML file.
func LoadInterfacePackage(path string) (*InterfacePackage, error) {
	var pkg InterfacePackage
	if err := decodeFile(path, &pkg); err != nil {
		return nil, err
	}
	if pkg.Name == "" || pkg.Version == "" {
		return nil, fmt.Errorf("interface package %s: name and version are required", path)
	}
	return &pkg, nil
}

// LoadIntegrationDefinition reads an integration definition from a JSON or YAML file.
func LoadIntegrationDefinition(path string) (*IntegrationDefinition, error) {
	var def IntegrationDefinition
	if err := decodeFile(path, &def); err != nil {
		return nil, err
	}
	if def.Name == "" || def.Version == "" {
		return nil, fmt.Errorf("integration %s: name and version are required", path)
	}
	return &def, nil
}

// LoadExtensionInput reads entity bindings and renames from a JSON or YAML
// file and attaches them to pkg.
func LoadExtensionInput(path string, pkg *InterfacePackage) (*InterfaceExtensionInput, error) {
	var in InterfaceExtensionInput
	if err := decodeFile(path, &in); err != nil {
		return nil, err
	}
	in.Package = *pkg
	return &in, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = YAMLToJSON(data)
		if err != nil {
			return fmt.Errorf("converting %s: %w", path, err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// YAMLToJSON converts a YAML document to JSON, keeping mapping key order so
// that ordered definitions survive the conversion.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeNode(&buf, &doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case 0:
		buf.WriteString("null")
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeNode(buf, n.Content[0])
	case yaml.AliasNode:
		return writeNode(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		scalar, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(scalar)
	default:
		return fmt.Errorf("line %d: unsupported yaml node kind %d", n.Line, n.Kind)
	}
	return nil
}
