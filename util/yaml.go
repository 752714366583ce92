package util

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetYamlLocation describes where node is, with its anchor or head comment if any
func GetYamlLocation(node *yaml.Node) string {
	location := fmt.Sprintf("yaml line %d:%d", node.Line, node.Column)
	if label := node.HeadComment + node.Anchor; label != "" {
		location += " " + label
	}
	return location
}

// NewYamlError creates an error prefixed by the line and column of node
func NewYamlError(node *yaml.Node, message string) error {
	return fmt.Errorf("yaml line %d:%d: %s", node.Line, node.Column, message)
}

// UnmarshalYamlFile decodes a YAML file into output, rejecting unknown fields
func UnmarshalYamlFile(path string, output interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := decodeYamlStrict(file, output); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// UnmarshalYamlString decodes YAML text into output, rejecting unknown fields
func UnmarshalYamlString(contents string, output interface{}) error {
	return decodeYamlStrict(strings.NewReader(contents), output)
}

// DecodeYamlNodeKnownFields decodes a node into output, rejecting unknown fields
//
// yaml.Node.Decode ignores KnownFields, so the node is re-encoded and decoded again by a strict decoder.
func DecodeYamlNodeKnownFields(node *yaml.Node, output interface{}) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	return decodeYamlStrict(bytes.NewReader(data), output)
}

func decodeYamlStrict(reader io.Reader, output interface{}) error {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	return decoder.Decode(output)
}
