package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetWatchState(t *testing.T) {
	all := []string{"disconnected", "connecting", "streaming"}

	SetWatchState("connecting", all)
	assert.InDelta(t, 1.0, testutil.ToFloat64(watchState.WithLabelValues("connecting")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(watchState.WithLabelValues("streaming")), 0)

	SetWatchState("streaming", all)
	assert.InDelta(t, 0.0, testutil.ToFloat64(watchState.WithLabelValues("connecting")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(watchState.WithLabelValues("streaming")), 0)
}

func TestRecordEvent(t *testing.T) {
	before := testutil.ToFloat64(eventsTotal.WithLabelValues("oom"))

	RecordEvent("oom")
	RecordEvent("oom")

	assert.InDelta(t, before+2, testutil.ToFloat64(eventsTotal.WithLabelValues("oom")), 0)
}

func TestSetRegistryContainers(t *testing.T) {
	SetRegistryContainers(7)

	assert.InDelta(t, 7.0, testutil.ToFloat64(registryContainers), 0)
}
