package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPermissionDenied is the condition stores report when access rules reject an operation.
var ErrPermissionDenied = errors.New("missing or insufficient permissions")

// Operation enumerates the store operations that access rules evaluate.
type Operation string

const (
	OperationGet    Operation = "get"
	OperationList   Operation = "list"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Valid reports whether op is one of the known operations.
func (op Operation) Valid() bool {
	switch op {
	case OperationGet, OperationList, OperationCreate, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}

// PermissionError describes a denied store operation. Values are built at the failure site and
// are not mutated after publication.
type PermissionError struct {
	Path           string
	Operation      Operation
	requestPayload map[string]any
}

// NewPermissionError builds a permission error; payload is copied and may be nil.
func NewPermissionError(path string, op Operation, payload map[string]any) *PermissionError {
	return &PermissionError{
		Path:           path,
		Operation:      op,
		requestPayload: CloneFields(payload),
	}
}

// RequestPayload returns a copy of the attempted payload, nil when none was supplied.
func (e *PermissionError) RequestPayload() map[string]any {
	if e == nil {
		return nil
	}
	return CloneFields(e.requestPayload)
}

// HasPayload reports whether the denied request carried a payload.
func (e *PermissionError) HasPayload() bool {
	return e != nil && e.requestPayload != nil
}

type deniedRequest struct {
	Path    string         `json:"path"`
	Method  Operation      `json:"method"`
	Payload map[string]any `json:"requestResourceData,omitempty"`
}

// Context renders the denied request as indented JSON for diagnostics.
func (e *PermissionError) Context() string {
	raw, err := json.MarshalIndent(deniedRequest{
		Path:    e.Path,
		Method:  e.Operation,
		Payload: e.requestPayload,
	}, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"path":%q,"method":%q}`, e.Path, e.Operation)
	}
	return string(raw)
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: the following request was denied by access rules:\n%s", ErrPermissionDenied.Error(), e.Context())
}

// Unwrap lets errors.Is(err, ErrPermissionDenied) match.
func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// IsPermissionDenied reports whether err stems from an access-rule rejection.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
