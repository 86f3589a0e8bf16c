package types

import "fmt"

// ValidationError reports malformed submission input. No record is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PermissionError reports an actor that is not eligible for the requested
// action in the record's current state. No mutation is applied.
type PermissionError struct {
	Condition        string
	AlreadyProcessed bool
}

func (e *PermissionError) Error() string {
	if e.AlreadyProcessed {
		return "not permitted: record already processed"
	}
	return "not permitted: " + e.Condition
}

type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %d not found", e.ID)
}

// DeliveryError is a send or delete failure for a single recipient.
type DeliveryError struct {
	Op        string
	Recipient int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s to %d: %v", e.Op, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// FormatError is a template referencing a field absent from the render
// context, or a template that does not exist.
type FormatError struct {
	Department Department
	Stage      string
	Key        string
	Err        error
}

func (e *FormatError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("render %s/%s: missing key %q", e.Department, e.Stage, e.Key)
	}
	return fmt.Sprintf("render %s/%s: %v", e.Department, e.Stage, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

type MalformedCallbackError struct {
	Payload string
	Reason  string
}

func (e *MalformedCallbackError) Error() string {
	return fmt.Sprintf("malformed callback %q: %s", e.Payload, e.Reason)
}
