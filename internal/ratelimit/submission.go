package ratelimit

import (
	"context"
	"fmt"

	"github.com/smallbiznis/vindesk/internal/config"
)

const keySubmission = "vindesk:submit:requester:%d"

// SubmissionLimiter caps submissions per requester. The per-minute limit is
// read from the desk config on every call, so reloads apply immediately.
// Burst equals the per-minute limit.
type SubmissionLimiter struct {
	bucket *TokenBucket
	desk   *config.DeskConfigHolder
}

func NewSubmissionLimiter(bucket *TokenBucket, desk *config.DeskConfigHolder) *SubmissionLimiter {
	return &SubmissionLimiter{bucket: bucket, desk: desk}
}

func (l *SubmissionLimiter) Allow(ctx context.Context, requesterID int64) (bool, error) {
	perMinute := l.desk.Get().Submission.RateLimitPerMinute
	if perMinute <= 0 {
		return true, nil
	}
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keySubmission, requesterID), float64(perMinute)/60, perMinute)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}
