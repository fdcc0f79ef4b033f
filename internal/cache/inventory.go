package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ReportKeyPrefix = "report:%s"
)

// ReportTTL is the default lifetime of a cached report.
var ReportTTL = 5 * time.Minute

// InvalidationHold is how long an invalidated key refuses new entries. A load that started
// before the invalidation and finishes within the hold cannot cache the old value.
var InvalidationHold = 5 * time.Second

// tombstone marks a key invalidated within the last InvalidationHold.
const tombstone = "\x00invalidated"

func ReportKey(reportID string) string {
	return fmt.Sprintf(ReportKeyPrefix, reportID)
}

// Invalidate drops key and holds it empty for InvalidationHold.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Set(ctx, key, tombstone, InvalidationHold)
	}
}

func InvalidateReport(ctx context.Context, reportID string) {
	Invalidate(ctx, ReportKey(reportID))
}
