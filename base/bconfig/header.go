// Package bconfig provides typed YAML holders for polymorphic configuration, e.g. the list of result sinks
package bconfig

// BaseConfig is implemented by every polymorphic config; the type name selects the constructor on unmarshalling
type BaseConfig interface {
	GetType() string
}

// Header is embedded inline by BaseConfig implementations to carry the "type" key
type Header struct {
	Type string `yaml:"type"`
}

// GetType returns the type name
func (header *Header) GetType() string {
	return header.Type
}
