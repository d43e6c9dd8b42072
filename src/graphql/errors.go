package graphql

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthenticate is returned by Login when the endpoint does not yield an
	// account id for the supplied credentials.
	ErrAuthenticate = errors.New("graphql: authentication failed")
	// ErrUnknownOperation is returned when a catalog lookup misses.
	ErrUnknownOperation = errors.New("graphql: unknown operation")
	// ErrUnsupportedVariable is returned when a caller passes a variable the
	// operation does not declare. It is raised before any request is sent.
	ErrUnsupportedVariable = errors.New("graphql: unsupported variable")
)

// HTTPError reports a non-2xx response from the endpoint.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("graphql: http %d: %s", e.Status, body)
}

// ErrorItem is one entry of a GraphQL "errors" array.
type ErrorItem struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// RemoteError carries the GraphQL-level errors of an otherwise successful
// response.
type RemoteError struct {
	Operation string
	Errors    []ErrorItem
}

func (e *RemoteError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		msgs = append(msgs, item.Message)
	}
	return fmt.Sprintf("graphql: %s: %s", e.Operation, strings.Join(msgs, "; "))
}

// IsRemote reports whether err is a remote failure (network, HTTP status or
// GraphQL errors) as opposed to a local programming error.
func IsRemote(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnknownOperation) || errors.Is(err, ErrUnsupportedVariable) {
		return false
	}
	return true
}
