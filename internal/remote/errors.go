package remote

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// TransportError means the request never produced a usable HTTP response:
// network failure, timeout, rate limiter cancellation or an open breaker.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the server answered with something the client cannot
// interpret: wrong status, wrong content type or a malformed body.
type ProtocolError struct {
	Endpoint    string
	Status      int
	ContentType string
	BodyPrefix  string
	Reason      string
}

func (e *ProtocolError) Error() string {
	if e.Stale() {
		return fmt.Sprintf("%s: route not found (404), the companion server is probably outdated", e.Endpoint)
	}
	return fmt.Sprintf("%s: %s (status %d, content-type %q)", e.Endpoint, e.Reason, e.Status, e.ContentType)
}

// Stale reports whether the endpoint itself is missing on the server, which
// happens when the companion server predates the route.
func (e *ProtocolError) Stale() bool {
	return e.Status == http.StatusNotFound
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func AsProtocol(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
