package dataflows

import (
	"fmt"
	"net/http"

	"github.com/dyike/CortexFolio/internal/apperr"
)

// statusError classifies a non-2xx provider response. Only throttling and
// server faults are transient; 404 means the subject is unknown and any
// other 4xx means the request itself was refused.
func statusError(op, subject string, status int, detail string) error {
	cause := fmt.Errorf("API error %d: %s", status, detail)
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return apperr.Upstream(op, subject, cause)
	case status == http.StatusNotFound:
		return apperr.DataUnavailable(op, subject, cause)
	default:
		return apperr.Rejected(op, subject, cause)
	}
}
