package llm

import (
	"fmt"
	"strings"
)

// StatusError is a non-success HTTP answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.Code, strings.TrimSpace(e.Body))
}

// HTTPStatusCode exposes the status to retry classification.
func (e *StatusError) HTTPStatusCode() int {
	return e.Code
}
