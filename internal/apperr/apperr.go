// Package apperr tags errors with the policy the scan loop applies to them.
//
//	transient - venue or network trouble, the tick is retried after a delay
//	data      - not enough bars or indicator warm-up, no signal this tick
//	order     - an order was rejected or could not be cancelled
//	fatal     - configuration or control-store failure, the process stops
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindTransient Kind = "transient"
	KindData      Kind = "data"
	KindOrder     Kind = "order"
	KindFatal     Kind = "fatal"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(kind Kind, op string, err error) error {
	if err == nil {
		err = errors.New(op)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transient(op string, err error) error { return wrap(KindTransient, op, err) }
func Data(op string, err error) error      { return wrap(KindData, op, err) }
func Order(op string, err error) error     { return wrap(KindOrder, op, err) }
func Fatal(op string, err error) error     { return wrap(KindFatal, op, err) }

// Dataf builds a data error without a cause.
func Dataf(op, format string, args ...any) error {
	return wrap(KindData, op, errors.Errorf(format, args...))
}

// KindOf returns the outermost kind in the chain. Untagged errors count as
// transient.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
