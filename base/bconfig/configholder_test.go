package bconfig

import (
	"fmt"
	"testing"

	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/util"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSinkConfig struct {
	Header `yaml:",inline"`
	Target string `yaml:"target"`
}

func (cfg *testSinkConfig) NewSink(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.ResultSink, error) {
	return nil, fmt.Errorf("not implemented")
}

func (cfg *testSinkConfig) VerifyConfig() error {
	return nil
}

func init() {
	RegisterConfigConstructors(SinkConfigCreatorTable{
		"test": func() SinkConfig { return &testSinkConfig{} },
	})
}

type testHolderDocument struct {
	Sinks []SinkConfigHolder `yaml:"sinks"`
}

func TestConfigHolderUnmarshal(t *testing.T) {
	var doc testHolderDocument
	require.NoError(t, util.UnmarshalYamlString(`
sinks:
  - type: test
    target: a
`, &doc))
	require.Len(t, doc.Sinks, 1)
	assert.Equal(t, "test", doc.Sinks[0].Value.GetType())
	assert.Equal(t, "a", doc.Sinks[0].Value.(*testSinkConfig).Target)
	assert.Equal(t, "yaml line 3:5", doc.Sinks[0].Location)
}

func TestConfigHolderErrors(t *testing.T) {
	var doc testHolderDocument
	assert.ErrorContains(t, util.UnmarshalYamlString(`
sinks:
  - target: a
    type: test
`, &doc), ".type is not the first property")

	assert.ErrorContains(t, util.UnmarshalYamlString(`
sinks:
  - type: unknown
`, &doc), "unsupported 'unknown'")

	assert.ErrorContains(t, util.UnmarshalYamlString(`
sinks:
  - type: test
    targets: a
`, &doc), "field targets not found")

	assert.Panics(t, func() {
		RegisterConfigConstructors(SinkConfigCreatorTable{})
	})
}
