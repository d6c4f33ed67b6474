package models

import "fmt"

// OperationType represents the kind of mutation a change record replays
type OperationType string

const (
	OperationInsert OperationType = "insert"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// ParseOperation validates an operation name received from the wire
func ParseOperation(s string) (OperationType, error) {
	switch op := OperationType(s); op {
	case OperationInsert, OperationUpdate, OperationDelete:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}
