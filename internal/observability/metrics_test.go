package observability

import (
	"errors"
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/v1/snapshot", 200, 12*time.Millisecond)
	RecordTransaction("read", nil, 40*time.Millisecond)
	RecordTransaction("write", errors.New("timeout"), 2*time.Second)
	RecordPollCycle()
	RecordRejection("tempcwu", "sentinel")
	RecordCacheHit("tempcwu")
}
