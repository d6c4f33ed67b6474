package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	assert.Equal(t, TableUsers, ParseTable("users"))
	assert.Equal(t, TableTransactions, ParseTable("transactions"))
	assert.Equal(t, TableRecurringEntries, ParseTable("recurring_entries"))
	assert.Equal(t, TableUnknown, ParseTable("nonexistent_table"))
	assert.Equal(t, TableUnknown, ParseTable(""))

	assert.True(t, TableUsers.Known())
	assert.False(t, TableUnknown.Known())
	assert.Equal(t, "unknown", TableUnknown.String())
}

func TestParseOperation(t *testing.T) {
	for _, s := range []string{"insert", "update", "delete"} {
		op, err := ParseOperation(s)
		require.NoError(t, err)
		assert.Equal(t, OperationType(s), op)
	}

	_, err := ParseOperation("upsert")
	assert.Error(t, err)
}

func TestParseTimestamp_Formats(t *testing.T) {
	want := time.Date(2025, 5, 4, 10, 30, 0, 123456000, time.UTC)

	cases := []string{
		"2025-05-04T10:30:00.123456Z",
		"2025-05-04T10:30:00.123456+00:00",
		"2025-05-04T10:30:00.123456", // python isoformat without zone
		"2025-05-04 10:30:00.123456",
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c)
		require.NoError(t, err, c)
		assert.True(t, want.Equal(got), "%s parsed as %s", c, got)
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestFormatTimestamp_LexicalOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := FormatTimestamp(base)
	b := FormatTimestamp(base.Add(time.Microsecond))
	c := FormatTimestamp(base.Add(10 * time.Second))

	assert.Len(t, a, len(TimestampLayout))
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestFormatTimestamp_ConvertsToUTC(t *testing.T) {
	berlin := time.FixedZone("CEST", 2*60*60)
	ts := time.Date(2025, 5, 4, 12, 0, 0, 0, berlin)
	assert.Equal(t, "2025-05-04T10:00:00.000000Z", FormatTimestamp(ts))
}

func TestNewChangeRecord(t *testing.T) {
	rec := NewChangeRecord(TableTransactions, OperationDelete, 7, 1, map[string]any{"amount": "1"})

	assert.NotEmpty(t, rec.UID)
	assert.Equal(t, "transactions", rec.Table)
	assert.Equal(t, TableTransactions, rec.Kind())
	assert.Empty(t, rec.Data, "delete payloads carry no data")

	_, err := rec.Time()
	assert.NoError(t, err)

	other := NewChangeRecord(TableTransactions, OperationInsert, 8, 1, nil)
	assert.NotEqual(t, rec.UID, other.UID)
	assert.NotNil(t, other.Data)
}

func TestTransactionData(t *testing.T) {
	recurring := int64(3)
	tx := &Transaction{
		ID:          5,
		UserID:      1,
		Date:        time.Date(2025, 5, 4, 0, 0, 0, 0, time.UTC),
		Description: "Rent",
		Usage:       "Housing",
		Amount:      decimal.RequireFromString("-950.50"),
		RecurringID: &recurring,
	}

	data := tx.Data()
	assert.Equal(t, int64(5), data["id"])
	assert.Equal(t, "-950.5", data["amount"])
	assert.Equal(t, int64(3), data["recurring_id"])
	assert.Equal(t, "2025-05-04T00:00:00.000000Z", data["date"])

	tx.RecurringID = nil
	assert.Nil(t, tx.Data()["recurring_id"])
}
