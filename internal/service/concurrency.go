package service

import (
	"time"

	apperrors "github.com/spec-kit/service-request-engine/pkg/util/errorutil"
)

// assertNotStale implements the opt-in optimistic lock. expected is the
// caller-supplied "last known" updated_at as an ISO-8601 string; nil skips
// the check. Comparison is exact at millisecond precision in either
// direction: any mismatch means the caller read a different version.
func assertNotStale(current time.Time, expected *string) error {
	if expected == nil {
		return nil
	}
	parsed, err := parseTimestamp(*expected)
	if err != nil {
		return apperrors.NewInvalidArgument("expected_updated_at is not a valid timestamp", map[string]any{
			"expected_updated_at": *expected,
		})
	}
	if !parsed.Truncate(time.Millisecond).Equal(current.Truncate(time.Millisecond)) {
		return apperrors.NewConflict("request has changed, refresh and retry", map[string]any{
			"expected_updated_at": parsed.UTC().Format(time.RFC3339Nano),
			"current_updated_at":  current.UTC().Format(time.RFC3339Nano),
		})
	}
	return nil
}

func parseTimestamp(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
