package classify

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Policy bounds how often a batch is retried after quota failures.
type Policy struct {
	MaxRetries int
	BaseWait   time.Duration
}

// DefaultPolicy is used when no retry settings are configured.
var DefaultPolicy = Policy{MaxRetries: 3, BaseWait: 20 * time.Second}

var quotaSignatures = []string{
	"rate limit",
	"rate_limit",
	"ratelimit",
	"quota",
	"resource exhausted",
	"resource_exhausted",
	"too many requests",
	"429",
}

type statusCoder interface {
	HTTPStatusCode() int
}

// IsQuotaError reports whether err looks like provider overload or quota exhaustion.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range quotaSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// NextWait decides what happens after the zero-based attempt failed with err.
// Quota errors wait BaseWait*(attempt+1) while attempts remain; anything else stops.
func NextWait(p Policy, attempt int, err error) (time.Duration, bool) {
	if !IsQuotaError(err) {
		return 0, false
	}
	maxRetries := p.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	if attempt+1 >= maxRetries {
		return 0, false
	}
	return p.BaseWait * time.Duration(attempt+1), true
}
