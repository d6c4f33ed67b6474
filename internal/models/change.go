package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeRecord is one replicated mutation. The JSON form is the wire shape
// used by the push and pull endpoints.
type ChangeRecord struct {
	Seq       int64          `json:"-"` // local changelog key
	UID       string         `json:"uid,omitempty"`
	Table     string         `json:"table"`
	Operation OperationType  `json:"op"`
	RowID     int64          `json:"id"`
	OwnerID   int64          `json:"-"` // user the row belongs to, for scoped pushes
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"ts"`
}

// NewChangeRecord stamps a change with a fresh uid and the current time
func NewChangeRecord(table Table, op OperationType, rowID, ownerID int64, data map[string]any) *ChangeRecord {
	if data == nil || op == OperationDelete {
		data = map[string]any{}
	}
	return &ChangeRecord{
		UID:       uuid.NewString(),
		Table:     table.String(),
		Operation: op,
		RowID:     rowID,
		OwnerID:   ownerID,
		Data:      data,
		Timestamp: FormatTimestamp(time.Now()),
	}
}

// Kind resolves the record's table name
func (c *ChangeRecord) Kind() Table {
	return ParseTable(c.Table)
}

// Time parses the record timestamp
func (c *ChangeRecord) Time() (time.Time, error) {
	return ParseTimestamp(c.Timestamp)
}

// Scope restricts a push to the changes owned by one user. The zero value
// selects everything.
type Scope struct {
	UserID int64
}

// All reports whether the scope is unrestricted
func (s Scope) All() bool {
	return s.UserID == 0
}

// UserScope returns a scope for one user
func UserScope(userID int64) Scope {
	return Scope{UserID: userID}
}
