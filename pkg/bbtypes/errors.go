package bbtypes

import (
	"errors"
	"fmt"
)

// Sentinel error kinds distinguishable at the orchestrator boundary via
// errors.Is. Wrap with fmt.Errorf("...: %w", ErrX) or use the New*Error
// helpers below to attach context.
var (
	// ErrPlanning indicates the planner LLM failed or returned unparseable
	// JSON and no replay candidate existed. Recovery: degrade to a
	// single-node plan.
	ErrPlanning = errors.New("planning error")

	// ErrQA is reserved for unrecoverable contract violations. In practice
	// repeated QA failures produce a needs_more_depth artifact instead of
	// this error being raised.
	ErrQA = errors.New("qa error")

	// ErrExecution indicates the solver failed twice for the same node, or
	// the token budget was exhausted mid-run.
	ErrExecution = errors.New("execution error")

	// ErrComposition indicates the composer received no artifacts at all.
	ErrComposition = errors.New("composition error")

	// ErrBlackboard is the base for typed programming errors not fitting
	// any of the above.
	ErrBlackboard = errors.New("blackboard error")
)

// PlanningError wraps ErrPlanning with a human-readable reason.
type PlanningError struct{ Reason string }

func (e *PlanningError) Error() string { return fmt.Sprintf("planning: %s", e.Reason) }
func (e *PlanningError) Unwrap() error { return ErrPlanning }

// NewPlanningError builds a PlanningError.
func NewPlanningError(reason string) *PlanningError { return &PlanningError{Reason: reason} }

// ExecutionError wraps ErrExecution, optionally naming the offending node.
type ExecutionError struct {
	Node   string
	Reason string
}

func (e *ExecutionError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("execution: %s", e.Reason)
	}
	return fmt.Sprintf("execution: node %q: %s", e.Node, e.Reason)
}
func (e *ExecutionError) Unwrap() error { return ErrExecution }

// NewExecutionError builds an ExecutionError.
func NewExecutionError(node, reason string) *ExecutionError {
	return &ExecutionError{Node: node, Reason: reason}
}

// CompositionError wraps ErrComposition.
type CompositionError struct{ Reason string }

func (e *CompositionError) Error() string { return fmt.Sprintf("composition: %s", e.Reason) }
func (e *CompositionError) Unwrap() error { return ErrComposition }

// NewCompositionError builds a CompositionError.
func NewCompositionError(reason string) *CompositionError {
	return &CompositionError{Reason: reason}
}
