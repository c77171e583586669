// Package ordering classifies changed files into ordering buckets and sorts
// them into the natural order that commit groups follow.
//
// The order is a path heuristic that tends to land dependencies before their
// dependents. It does not analyze imports or types, so it cannot guarantee
// that every intermediate commit builds.
package ordering

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBucket is returned when a bucket name cannot be parsed.
var ErrUnknownBucket = errors.New("unknown bucket")

// Bucket is an ordering category. Lower buckets are committed first.
type Bucket int

// Buckets in commit order.
const (
	BucketConfig Bucket = iota
	BucketUtils
	BucketCore
	BucketFeature
	BucketTest
	BucketDocs

	bucketCount = int(BucketDocs) + 1
)

var bucketNames = [bucketCount]string{"config", "utils", "core", "feature", "test", "docs"}

// String returns the bucket name used in fallback commit messages.
func (b Bucket) String() string {
	if b < 0 || int(b) >= bucketCount {
		return "unknown"
	}

	return bucketNames[b]
}

// Buckets returns all buckets in commit order.
func Buckets() []Bucket {
	out := make([]Bucket, bucketCount)
	for i := range out {
		out[i] = Bucket(i)
	}

	return out
}

// ParseBucket parses a bucket name.
func ParseBucket(name string) (Bucket, error) {
	want := strings.ToLower(strings.TrimSpace(name))

	for i, n := range bucketNames {
		if n == want {
			return Bucket(i), nil
		}
	}

	return BucketFeature, fmt.Errorf("%w: %q", ErrUnknownBucket, name)
}
