package bconfig

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/relex/frame-agent/util"
	"github.com/relex/gotils/logger"
	"gopkg.in/yaml.v3"
)

// ConfigHolder wraps a BaseConfig implementation chosen by the "type" key, which must be the first key in YAML
type ConfigHolder[C BaseConfig] struct {
	Location string `yaml:"-"` // source location for error messages
	Value    C
}

// ConfigCreatorTable maps type names to config constructors
type ConfigCreatorTable[C BaseConfig] map[string]func() C

var (
	creatorTablesMutex sync.RWMutex
	creatorTables      = map[reflect.Type]any{}
)

func (holder ConfigHolder[C]) String() string {
	return fmt.Sprint(holder.Value)
}

// MarshalYAML exports the inner config only; the output can be unmarshalled again as long as Header is inline
func (holder ConfigHolder[C]) MarshalYAML() (interface{}, error) {
	return holder.Value, nil
}

// UnmarshalYAML creates the config registered for the type name and decodes the whole node into it
func (holder *ConfigHolder[C]) UnmarshalYAML(value *yaml.Node) error {
	table := lookupCreatorTable[C]()

	if value.Kind != yaml.MappingNode || len(value.Content) < 2 {
		return util.NewYamlError(value, ".type is undefined")
	}
	if key := value.Content[0]; key.Kind != yaml.ScalarNode || key.Value != "type" {
		return util.NewYamlError(value, fmt.Sprintf(".type is not the first property, which is: %v", key.Value))
	}

	typeName := value.Content[1].Value
	create, found := table[typeName]
	if !found {
		return util.NewYamlError(value, fmt.Sprintf(".type: unsupported '%s', choose one of %v", typeName, table.typeNames()))
	}
	cfg := create()
	if err := util.DecodeYamlNodeKnownFields(value, cfg); err != nil {
		return util.NewYamlError(value, err.Error())
	}

	holder.Value = cfg
	holder.Location = util.GetYamlLocation(value)
	return nil
}

// RegisterConfigConstructors registers the constructors of all implementations of C
//
// It panics if C already has a table registered.
func RegisterConfigConstructors[C BaseConfig](table ConfigCreatorTable[C]) {
	key := configKey[C]()

	creatorTablesMutex.Lock()
	defer creatorTablesMutex.Unlock()
	if _, exists := creatorTables[key]; exists {
		logger.Panicf("config constructors already registered for %s", key)
	}
	creatorTables[key] = table
}

func lookupCreatorTable[C BaseConfig]() ConfigCreatorTable[C] {
	key := configKey[C]()

	creatorTablesMutex.RLock()
	defer creatorTablesMutex.RUnlock()
	table, exists := creatorTables[key]
	if !exists {
		logger.Panicf("config constructors not registered for %s", key)
	}
	return table.(ConfigCreatorTable[C])
}

func (table ConfigCreatorTable[C]) typeNames() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func configKey[C BaseConfig]() reflect.Type {
	return reflect.TypeOf((*C)(nil)).Elem()
}
