// Package errors buckets errors into low-cardinality class names for metric
// tags and log fields.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	"github.com/target/mmk-autoapply/internal/domain/model"
)

// Classify returns a normalized class name for err. Submission errors and
// context errors map to fixed names; anything else is named after the
// innermost concrete error type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var perm *model.PermanentSubmissionError
	var tr *model.TransientSubmissionError
	switch {
	case goerrors.As(err, &perm):
		return string(model.OutcomePermanent)
	case goerrors.As(err, &tr):
		return string(model.OutcomeTransient)
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
