package clients

import (
	"fmt"

	"github.com/pkg/errors"
)

// RejectedError is returned when the market answered a request with
// status=fail. The action is dropped; it is never retried.
type RejectedError struct {
	Service string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: rejected by market", e.Service)
	}
	return fmt.Sprintf("%s: rejected by market: %s", e.Service, e.Message)
}

// IsRejected reports whether err is a market rejection as opposed to a
// transport failure.
func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
