package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
)

// A Query is one named, parameterized query against the content store. Each
// backend runs the text written for it. Parameters are always passed
// separately; nothing is ever spliced into the query text.
type Query struct {
	Name string
	// GROQ for Sanity. Parameters are referenced as $name.
	GROQ string
	// SQL for Postgres. Parameters are referenced as @name. The query must
	// return one row with one JSON column, in the same shape as the GROQ
	// projection.
	SQL string
}

type Params map[string]any

// A Fetcher runs a query and returns the raw JSON result. A query that
// matches nothing returns JSON null, not an error.
type Fetcher interface {
	Fetch(ctx context.Context, q Query, params Params) (json.RawMessage, error)
}

type ErrorKind int

const (
	// The store could not be reached or answered with an error.
	Network ErrorKind = iota + 1
	// The context deadline passed before the store answered.
	Timeout
	// The store answered with something we could not decode.
	Malformed
)

func (k ErrorKind) String() string {
	switch k {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

type FetchError struct {
	Kind  ErrorKind
	Query string
	// Set when the store answered with a non-2xx HTTP status.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("content query %q failed (%s)", e.Query, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrNotFound is returned by the typed helpers when a single-item query
// finds nothing.
var ErrNotFound = errors.New("content not found")

func IsKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

// transportError classifies an error from the transport layer.
func transportError(ctx context.Context, q Query, err error) *FetchError {
	kind := Network
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = Timeout
	}
	return &FetchError{
		Kind:  kind,
		Query: q.Name,
		Err:   err,
	}
}

func malformed(q Query, err error) *FetchError {
	return &FetchError{
		Kind:  Malformed,
		Query: q.Name,
		Err:   err,
	}
}
