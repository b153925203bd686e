package http

import (
	"errors"
	"net/http"

	"github.com/vadim/neo-dashboard/internal/httpx/upstream/dashboard"
)

// upstreamStatus picks the status to answer with when the remote API failed.
// Auth failures are passed through so the page can send the user to log in.
func upstreamStatus(err error) int {
	var apiErr *dashboard.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apiErr.StatusCode
		}
	}
	return http.StatusBadGateway
}
