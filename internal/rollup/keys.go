// Package rollup computes operational counters/sums from the reading,
// event, aggregate, and insight change feeds into the Rollups table only,
// enforcing the no-feedback-loop discipline: it never writes to any
// business table.
package rollup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/allenheltondev/dirt-man/internal/timeutil"
	"github.com/allenheltondev/dirt-man/pkg/models"
)

// BucketKey renders "bucket_type#bucket_start_ms".
func BucketKey(bucketType models.BucketType, startMs int64) string {
	return fmt.Sprintf("%s#%d", bucketType, startMs)
}

// MetricKey renders "metric_name#dim=val,dim=val..." with dimensions sorted
// by name.
func MetricKey(metricName string, dims map[string]string) string {
	if len(dims) == 0 {
		return metricName
	}
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", k, dims[k]))
	}
	return metricName + "#" + strings.Join(parts, ",")
}

// minuteBucketTTL and hourBucketTTL are the bucket-type TTLs, in seconds.
const (
	minuteBucketTTLSeconds = 7 * 24 * 60 * 60
	hourBucketTTLSeconds   = 90 * 24 * 60 * 60
)

func ttlFor(bucketType models.BucketType) int64 {
	if bucketType == models.BucketHour {
		return hourBucketTTLSeconds
	}
	return minuteBucketTTLSeconds
}

// minuteBucket aligns nowMs to the minute rollup bucket used for
// system-level metrics: these are bucketed by current time, not event time,
// since they describe the operational system rather than a device reading.
func minuteBucket(nowMs int64) int64 { return timeutil.MinuteBucket(nowMs) }

func hourBucket(nowMs int64) int64 { return timeutil.HourBucket(nowMs) }
