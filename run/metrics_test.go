package run

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readControlRequestCount(t *testing.T, operation string, status string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "frameagent_control_requests_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			if labelValue(m.GetLabel(), "operation") == operation && labelValue(m.GetLabel(), "status") == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelValue(pairs []*dto.LabelPair, name string) string {
	for _, pair := range pairs {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func TestControlRequestMetrics(t *testing.T) {
	service, _ := newTestService(t, "run_metrics_test_")
	ctx := context.Background()

	rejectedBefore := readControlRequestCount(t, "terminate", "rejected")
	assert.Error(t, service.Terminate(ctx))
	assert.Equal(t, rejectedBefore+1, readControlRequestCount(t, "terminate", "rejected"))

	rejectedBefore = readControlRequestCount(t, "configure", "rejected")
	assert.Error(t, service.Configure(ctx, ConfigureRequest{}))
	assert.Equal(t, rejectedBefore+1, readControlRequestCount(t, "configure", "rejected"))

	acceptedBefore := readControlRequestCount(t, "configure", "accepted")
	assert.NoError(t, service.Configure(ctx, ConfigureRequest{SourceAddress: "synthetic://16x16?paced=true"}))
	assert.Equal(t, acceptedBefore+1, readControlRequestCount(t, "configure", "accepted"))
	assert.NoError(t, service.Terminate(ctx))
}
