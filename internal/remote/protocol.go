// Package remote defines the sync wire protocol and the HTTP client that
// speaks it.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kilupskalvis/finsync/internal/models"
)

// Endpoint paths, relative to the remote base URL.
const (
	PushPath = "/api/sync/push"
	PullPath = "/api/sync/pull"
)

// PushRequest is the body of a push: a bare JSON array of change records.
type PushRequest []*models.ChangeRecord

// PullResponse is the body of a pull: change records, oldest first.
type PullResponse []*models.ChangeRecord

// ErrorResponse is the structured error format returned by the server.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// DecodeChanges reads a JSON array of change records. Each element is decoded
// on its own, keeping numbers as json.Number; an element that does not fit a
// ChangeRecord comes back as a nil entry so the caller can count it and go on
// with the rest. Only a body that is not a JSON array is an error.
func DecodeChanges(r io.Reader) ([]*models.ChangeRecord, error) {
	var raws []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, err
	}

	changes := make([]*models.ChangeRecord, len(raws))
	for i, raw := range raws {
		c, err := decodeChange(raw)
		if err != nil {
			continue
		}
		changes[i] = c
	}
	return changes, nil
}

func decodeChange(raw json.RawMessage) (*models.ChangeRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var c models.ChangeRecord
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	return &c, nil
}
