package golive

import (
	"context"
	"errors"
	"net"
	"syscall"

	"go.mongodb.org/mongo-driver/mongo"
	"go.temporal.io/api/serviceerror"
)

// Outcome is the result of one side effect of a handler.
type Outcome int

const (
	Succeeded Outcome = iota
	Skipped
	Retryable
	Permanent
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Retryable:
		return "retryable"
	case Permanent:
		return "permanent"
	}
	return "unknown"
}

type StepResult struct {
	Outcome Outcome
	Reason  string
	Err     error
}

func (r StepResult) Failed() bool {
	return r.Outcome == Retryable || r.Outcome == Permanent
}

func succeeded() StepResult { return StepResult{Outcome: Succeeded} }

func skipped(reason string) StepResult { return StepResult{Outcome: Skipped, Reason: reason} }

func failed(reason string, err error) StepResult {
	return StepResult{Outcome: Classify(err), Reason: reason, Err: err}
}

// Classify tells transient infrastructure failures apart from everything else.
func Classify(err error) Outcome {
	if err == nil {
		return Succeeded
	}
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return Retryable
	}
	var unavailable *serviceerror.Unavailable
	var exhausted *serviceerror.ResourceExhausted
	var deadline *serviceerror.DeadlineExceeded
	if errors.As(err, &unavailable) || errors.As(err, &exhausted) || errors.As(err, &deadline) {
		return Retryable
	}
	return Permanent
}
