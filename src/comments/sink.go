package comments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quillpress/quill/src/utils"
)

type SinkErrorKind int

const (
	// The sink could not be reached.
	Network SinkErrorKind = iota + 1
	// The sink answered and said no.
	Rejected
)

func (k SinkErrorKind) String() string {
	switch k {
	case Network:
		return "network"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type SinkError struct {
	Kind       SinkErrorKind
	StatusCode int
	Err        error
}

func (e *SinkError) Error() string {
	msg := fmt.Sprintf("comment submission failed (%s)", e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" with status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

func IsKind(err error, kind SinkErrorKind) bool {
	var se *SinkError
	return errors.As(err, &se) && se.Kind == kind
}

// HTTPSink posts drafts as JSON. Any 2xx status is success.
type HTTPSink struct {
	URL    string
	Client *http.Client
}

var _ Sink = &HTTPSink{}

func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{
		URL: url,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *HTTPSink) Submit(ctx context.Context, d Draft) error {
	body, err := json.Marshal(d)
	if err != nil {
		return &SinkError{Kind: Rejected, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return &SinkError{Kind: Network, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return &SinkError{Kind: Network, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		resBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &SinkError{
			Kind:       Rejected,
			StatusCode: res.StatusCode,
			Err:        fmt.Errorf("%s", utils.Truncate(strings.TrimSpace(string(resBody)), 300)),
		}
	}
	io.Copy(io.Discard, res.Body)
	return nil
}

// StoreSink writes drafts straight to a Store in this process.
type StoreSink struct {
	Store Store
}

var _ Sink = &StoreSink{}

func (s *StoreSink) Submit(ctx context.Context, d Draft) error {
	if _, err := s.Store.CreateComment(ctx, d); err != nil {
		kind := Network
		if errors.Is(err, ErrUnknownPost) {
			kind = Rejected
		}
		return &SinkError{Kind: kind, Err: err}
	}
	return nil
}
