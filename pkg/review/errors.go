package review

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a workflow error for the presentation layer.
// All kinds except KindStoreUnavailable are recoverable conditions that the
// caller is expected to render inline and leave state unchanged.
type ErrorKind string

const (
	// KindNotFound indicates no ConfigUnit matches the given key.
	KindNotFound ErrorKind = "not_found"

	// KindPreconditionNotMet indicates an approval was attempted on a stage
	// whose gate is not satisfied. No flags were changed.
	KindPreconditionNotMet ErrorKind = "precondition_not_met"

	// KindInvalidStage indicates an unknown stage token.
	KindInvalidStage ErrorKind = "invalid_stage"

	// KindInvalidReviewer indicates a reviewer that is not configured for
	// the stage being acted on.
	KindInvalidReviewer ErrorKind = "invalid_reviewer"

	// KindMalformedConfig indicates a config value that is neither a scalar
	// nor a nested mapping.
	KindMalformedConfig ErrorKind = "malformed_config"

	// KindPartialBatchFailure indicates a batch update was applied to a
	// strict subset of the targeted units.
	KindPartialBatchFailure ErrorKind = "partial_batch_failure"

	// KindStoreUnavailable indicates the backing store could not be read or
	// written. This is the only fatal kind; the workflow performs no retries.
	KindStoreUnavailable ErrorKind = "store_unavailable"
)

// Error is a classified workflow error with unit and stage context.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Experiment and Implementation identify the unit involved, when known.
	Experiment     string `json:"experiment,omitempty"`
	Implementation string `json:"implementation,omitempty"`

	// Stage is the pipeline stage involved, when applicable.
	Stage Stage `json:"stage,omitempty"`

	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if e.Experiment != "" {
		fmt.Fprintf(&b, " (unit=%s/%s", e.Experiment, e.Implementation)
		if e.Stage != "" {
			fmt.Fprintf(&b, ", stage=%s", e.Stage)
		}
		b.WriteString(")")
	} else if e.Stage != "" {
		fmt.Fprintf(&b, " (stage=%s)", e.Stage)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality for errors.Is: two review errors match when
// their kinds match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithUnit adds unit context to an error.
func (e *Error) WithUnit(key UnitKey) *Error {
	e.Experiment = key.Experiment
	e.Implementation = key.Implementation
	return e
}

// WithStage adds stage context to an error.
func (e *Error) WithStage(stage Stage) *Error {
	e.Stage = stage
	return e
}

// NewNotFoundError creates a not-found error for the given unit key.
func NewNotFoundError(key UnitKey) *Error {
	return &Error{
		Kind:           KindNotFound,
		Message:        "no config unit matches key",
		Experiment:     key.Experiment,
		Implementation: key.Implementation,
	}
}

// NewPreconditionError creates a precondition-not-met error for an approval
// attempted while its gate stage is unsatisfied.
func NewPreconditionError(key UnitKey, stage, gate Stage) *Error {
	return &Error{
		Kind:           KindPreconditionNotMet,
		Message:        fmt.Sprintf("stage %s requires %s first", stage, gate),
		Experiment:     key.Experiment,
		Implementation: key.Implementation,
		Stage:          stage,
	}
}

// NewInvalidStageError creates an invalid-stage error for an unknown token.
func NewInvalidStageError(token string) *Error {
	return &Error{
		Kind:    KindInvalidStage,
		Message: fmt.Sprintf("unknown stage token %q", token),
	}
}

// NewMalformedConfigError creates a malformed-config error for the named
// parameter key.
func NewMalformedConfigError(key string, err error) *Error {
	return &Error{
		Kind:    KindMalformedConfig,
		Message: fmt.Sprintf("config value for %q is neither scalar nor mapping", key),
		Err:     err,
	}
}

// NewStoreError wraps a store-layer failure.
func NewStoreError(op string, err error) *Error {
	return &Error{
		Kind:    KindStoreUnavailable,
		Message: fmt.Sprintf("store %s failed", op),
		Err:     err,
	}
}

// IsNotFound returns true if the error is classified as not-found.
func IsNotFound(err error) bool {
	return kindOf(err) == KindNotFound
}

// IsPreconditionNotMet returns true if the error is a gate violation.
func IsPreconditionNotMet(err error) bool {
	return kindOf(err) == KindPreconditionNotMet
}

// IsInvalidStage returns true if the error is an unknown stage token.
func IsInvalidStage(err error) bool {
	return kindOf(err) == KindInvalidStage
}

// IsInvalidReviewer returns true if the error names an unconfigured reviewer.
func IsInvalidReviewer(err error) bool {
	return kindOf(err) == KindInvalidReviewer
}

// IsMalformedConfig returns true if the error is a malformed config value.
func IsMalformedConfig(err error) bool {
	return kindOf(err) == KindMalformedConfig
}

// IsStoreUnavailable returns true if the error is a store-layer failure.
func IsStoreUnavailable(err error) bool {
	return kindOf(err) == KindStoreUnavailable
}

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var b *BatchError
	if errors.As(err, &b) {
		return KindPartialBatchFailure
	}
	return ""
}

// UnitOutcome is the per-unit result of a batch update.
type UnitOutcome struct {
	Key UnitKey `json:"key"`
	Err error   `json:"-"`
}

// OK reports whether the unit's update was applied.
func (o UnitOutcome) OK() bool {
	return o.Err == nil
}

// BatchError reports a batch update that was applied to a strict subset of
// its targeted units. Outcomes lists every targeted unit, applied or not.
type BatchError struct {
	Action   string        `json:"action"`
	Outcomes []UnitOutcome `json:"outcomes"`
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	applied, failed := e.Counts()
	return fmt.Sprintf("[%s] %s applied to %d of %d units",
		KindPartialBatchFailure, e.Action, applied, applied+failed)
}

// Counts returns the number of applied and failed unit updates.
func (e *BatchError) Counts() (applied, failed int) {
	for _, o := range e.Outcomes {
		if o.OK() {
			applied++
		} else {
			failed++
		}
	}
	return applied, failed
}

// Failed returns the outcomes of the units whose update was not applied.
func (e *BatchError) Failed() []UnitOutcome {
	var out []UnitOutcome
	for _, o := range e.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// IsPartialBatchFailure returns true if the error is a partial batch failure.
func IsPartialBatchFailure(err error) bool {
	var b *BatchError
	return errors.As(err, &b)
}
