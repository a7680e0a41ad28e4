// Package comments handles reader comments on posts: validating a draft,
// submitting it exactly once, and tracking where the submission got to.
package comments

import (
	"context"
	"errors"
	"strings"
	"sync"
)

type State int

const (
	NotSubmitted State = iota
	Submitting
	Submitted
	Failed
)

func (s State) String() string {
	switch s {
	case NotSubmitted:
		return "not submitted"
	case Submitting:
		return "submitting"
	case Submitted:
		return "submitted"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// A Draft is a comment as the reader typed it. PostID always comes from the
// page, never from the reader.
type Draft struct {
	PostID  string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Comment string `json:"comment"`
}

type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldComment Field = "comment"
)

func (f Field) Label() string {
	switch f {
	case FieldName:
		return "Name"
	case FieldEmail:
		return "E-mail"
	case FieldComment:
		return "Comment"
	default:
		return string(f)
	}
}

type ValidationKind int

const (
	MissingField ValidationKind = iota + 1
)

type ValidationError struct {
	Field Field
	Kind  ValidationKind
}

func (e *ValidationError) Error() string {
	return "The " + e.Field.Label() + " field is required"
}

// ValidationErrors holds one error per invalid field, in form order.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (errs ValidationErrors) For(field Field) *ValidationError {
	for _, err := range errs {
		if err.Field == field {
			return err
		}
	}
	return nil
}

func Validate(d Draft) ValidationErrors {
	var errs ValidationErrors
	for _, f := range []struct {
		Field Field
		Value string
	}{
		{FieldName, d.Name},
		{FieldEmail, d.Email},
		{FieldComment, d.Comment},
	} {
		if strings.TrimSpace(f.Value) == "" {
			errs = append(errs, &ValidationError{Field: f.Field, Kind: MissingField})
		}
	}
	return errs
}

var (
	ErrSubmitInFlight   = errors.New("a comment submission is already in flight")
	ErrAlreadySubmitted = errors.New("comment has already been submitted")
)

// A Sink accepts submitted comments. Failures should be *SinkError.
type Sink interface {
	Submit(ctx context.Context, d Draft) error
}

/*
A Form is one reader's comment form on one page.

	NotSubmitted -> Submitting -> Submitted
	                Submitting -> Failed -> Submitting

Invalid drafts never leave the current state. Only one submission can be in
flight; Submit calls made while one is running return ErrSubmitInFlight
without reaching the sink.
*/
type Form struct {
	postID string
	sink   Sink

	mu      sync.Mutex
	state   State
	draft   Draft
	lastErr error
}

func NewForm(postID string, sink Sink) *Form {
	return &Form{
		postID: postID,
		sink:   sink,
		draft:  Draft{PostID: postID},
	}
}

func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Draft returns the values the form currently holds. After a successful
// submission it is empty again.
func (f *Form) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// Err returns the error from the last failed submission.
func (f *Form) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Submit validates d and, if it is valid, sends it to the sink. It returns
// ValidationErrors for an invalid draft and a *SinkError if the sink failed.
func (f *Form) Submit(ctx context.Context, d Draft) error {
	d.PostID = f.postID

	f.mu.Lock()
	switch f.state {
	case Submitting:
		f.mu.Unlock()
		return ErrSubmitInFlight
	case Submitted:
		f.mu.Unlock()
		return ErrAlreadySubmitted
	}
	f.draft = d
	if errs := Validate(d); len(errs) > 0 {
		f.mu.Unlock()
		return errs
	}
	f.state = Submitting
	f.mu.Unlock()

	err := f.sink.Submit(ctx, d)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		var sinkErr *SinkError
		if !errors.As(err, &sinkErr) {
			err = &SinkError{Kind: Network, Err: err}
		}
		f.state = Failed
		f.lastErr = err
		return err
	}
	f.state = Submitted
	f.draft = Draft{PostID: f.postID}
	f.lastErr = nil
	return nil
}
