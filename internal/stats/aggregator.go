// Package stats talks to the view statistics service. Hits are recorded
// fire-and-forget; view counts are read back per URI.
package stats

import (
	"context"
	"time"
)

// TimeLayout is the timestamp format of the statistics wire protocol.
const TimeLayout = "2006-01-02 15:04:05"

// Hit is one view of a URI by a client address.
type Hit struct {
	App       string
	URI       string
	IP        string
	Timestamp time.Time
}

// ViewQuery asks for view counts of URIs between Start and End. With Unique
// set each client address is counted once per URI.
type ViewQuery struct {
	URIs   []string
	Start  time.Time
	End    time.Time
	Unique bool
}

// Aggregator records hits and counts views. URIs without hits are absent
// from the returned map; callers read them as zero.
type Aggregator interface {
	RecordHit(ctx context.Context, hit Hit) error
	QueryViews(ctx context.Context, q ViewQuery) (map[string]int64, error)
}
