package surrealdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdriver/pkg/constants"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

// Outcome is the result of one statement: either OK with zero, one or many
// values, or ERR with the server's message.
type Outcome struct {
	// Index is the position of the statement in the query.
	Index int
	// Status is "OK" or "ERR".
	Status string
	// Time is the execution time reported by the server, e.g. "29.375µs".
	Time string

	result  models.Value
	message string
}

// OK reports whether the statement succeeded.
func (o *Outcome) OK() bool {
	return o.Status == constants.StatusOK
}

// Err returns a *StatementError for a failed statement and nil otherwise.
func (o *Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return &StatementError{Index: o.Index, Message: o.message}
}

// Values returns the values of a successful statement, in server order.
// An array result gives its items, NONE gives no values and anything else
// gives a single value. On a failed statement the error matches both
// ErrWrongOutcome and ErrStatement.
func (o *Outcome) Values() ([]models.Value, error) {
	if !o.OK() {
		return nil, fmt.Errorf("%w: %w", ErrWrongOutcome, o.Err())
	}
	switch {
	case o.result.IsNone():
		return []models.Value{}, nil
	case o.result.Kind() == models.KindArray:
		items, _ := o.result.AsArray()
		return append([]models.Value(nil), items...), nil
	}
	return []models.Value{o.result}, nil
}

// First returns the first value of a successful statement.
func (o *Outcome) First() (models.Value, error) {
	if err := o.Err(); err != nil {
		return models.Value{}, err
	}
	values, _ := o.Values()
	if len(values) == 0 {
		return models.Value{}, ErrNoValue
	}
	return values[0], nil
}

// Message returns the server's message for a failed statement.
func (o *Outcome) Message() (string, error) {
	if o.OK() {
		return "", ErrWrongOutcome
	}
	return o.message, nil
}

// Result returns the statement's result exactly as the server sent it.
// For a failed statement this is the error message as a string value.
func (o *Outcome) Result() models.Value {
	return o.result
}

// Decode decodes the whole result of a successful statement into dst.
func (o *Outcome) Decode(dst any) error {
	if err := o.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrongOutcome, err)
	}
	return models.Decode(o.result, dst)
}

// Duration parses Time.
func (o *Outcome) Duration() (time.Duration, error) {
	return time.ParseDuration(o.Time)
}

// Response holds one Outcome per statement, in submission order.
type Response struct {
	outcomes []Outcome
}

func (r *Response) Len() int {
	return len(r.outcomes)
}

// Outcome returns the outcome of statement i.
func (r *Response) Outcome(i int) (*Outcome, error) {
	if i < 0 || i >= len(r.outcomes) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrNoOutcome, i, len(r.outcomes))
	}
	return &r.outcomes[i], nil
}

// Outcomes returns a copy of all outcomes.
func (r *Response) Outcomes() []Outcome {
	return append([]Outcome(nil), r.outcomes...)
}

// FirstValue returns the first value of the first outcome. It fails with
// ErrNoOutcome on an empty response, with a *StatementError when the first
// statement failed, and with ErrNoValue when it succeeded without a value.
func (r *Response) FirstValue() (models.Value, error) {
	if len(r.outcomes) == 0 {
		return models.Value{}, ErrNoOutcome
	}
	return r.outcomes[0].First()
}

// Err joins the errors of every failed statement. It is nil when all
// statements succeeded.
func (r *Response) Err() error {
	var errs []error
	for i := range r.outcomes {
		if err := r.outcomes[i].Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AllOK reports whether every statement succeeded.
func (r *Response) AllOK() bool {
	for i := range r.outcomes {
		if !r.outcomes[i].OK() {
			return false
		}
	}
	return true
}

// TotalTime sums the execution times reported by the server. Times that do
// not parse are skipped.
func (r *Response) TotalTime() time.Duration {
	var total time.Duration
	for i := range r.outcomes {
		if d, err := r.outcomes[i].Duration(); err == nil {
			total += d
		}
	}
	return total
}

// DecodeFirst decodes the first value of the first outcome into a T.
func DecodeFirst[T any](resp *Response) (T, error) {
	var zero T
	v, err := resp.FirstValue()
	if err != nil {
		return zero, err
	}
	return models.As[T](v)
}

// DecodeAll decodes every value of a successful outcome into a T.
func DecodeAll[T any](o *Outcome) ([]T, error) {
	values, err := o.Values()
	if err != nil {
		return nil, err
	}
	out := make([]T, len(values))
	for i, v := range values {
		if err := models.Decode(v, &out[i]); err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
	}
	return out, nil
}

// parseResponse reads the reply of a query call: a list of
// {status, time, result} objects.
func parseResponse(v models.Value) (*Response, error) {
	items, err := v.AsArray()
	if err != nil {
		return nil, &ProtocolError{Reason: "query reply is not a list of outcomes", Err: err}
	}

	resp := &Response{outcomes: make([]Outcome, len(items))}
	for i, item := range items {
		if item.Kind() != models.KindObject {
			return nil, &ProtocolError{Reason: fmt.Sprintf("outcome %d is a %s, not an object", i, item.Kind())}
		}

		statusValue, _ := item.Get("status")
		status, err := statusValue.AsString()
		if err != nil {
			return nil, &ProtocolError{Reason: fmt.Sprintf("outcome %d has no status", i), Err: err}
		}

		o := Outcome{Index: i, Status: status}
		if t, ok := item.Get("time"); ok {
			o.Time, _ = t.AsString()
		}
		o.result, _ = item.Get("result")

		switch status {
		case constants.StatusOK:
		case constants.StatusErr:
			if msg, err := o.result.AsString(); err == nil {
				o.message = msg
			} else {
				o.message = o.result.String()
			}
		default:
			return nil, &ProtocolError{Reason: fmt.Sprintf("outcome %d has unknown status %q", i, status)}
		}
		resp.outcomes[i] = o
	}
	return resp, nil
}
