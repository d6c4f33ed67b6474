package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kilupskalvis/finsync/internal/models"
	"github.com/shopspring/decimal"
)

// ErrMalformedData marks a change payload that cannot be stored as-is.
// It is a per-record problem; callers skip the record and carry on.
var ErrMalformedData = errors.New("malformed data")

// Normalize coerces payload values to the column types of the table.
// Unknown columns are dropped and returned so callers can log them.
func (ts *TableSpec) Normalize(data map[string]any) (map[string]any, []string, error) {
	out := make(map[string]any, len(data))
	var dropped []string

	for name, v := range data {
		col, ok := ts.Column(name)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		cv, err := coerce(col, v)
		if err != nil {
			return nil, dropped, fmt.Errorf("%w: %s.%s: %v", ErrMalformedData, ts.Table, name, err)
		}
		out[name] = cv
	}

	return out, dropped, nil
}

// coerce converts a JSON-decoded value into the database representation of
// the column: int64 for ints and bools, canonical text for decimals and times.
func coerce(col Column, v any) (any, error) {
	if v == nil {
		if col.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("null value for non-null column")
	}

	switch col.Kind {
	case KindInt:
		return toInt64(v)

	case KindText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil

	case KindDecimal:
		d, err := toDecimal(v)
		if err != nil {
			return nil, err
		}
		return d.String(), nil

	case KindBool:
		b, err := toBool(v)
		if err != nil {
			return nil, err
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil

	case KindTime:
		switch t := v.(type) {
		case string:
			return models.NormalizeTimestamp(t)
		case time.Time:
			return models.FormatTimestamp(t), nil
		}
		return nil, fmt.Errorf("expected timestamp string, got %T", v)
	}

	return nil, fmt.Errorf("unsupported column kind %d", col.Kind)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	}
	return decimal.Zero, fmt.Errorf("expected decimal, got %T", v)
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	}
	n, err := toInt64(v)
	if err != nil {
		return false, fmt.Errorf("expected bool, got %T", v)
	}
	return n != 0, nil
}

// fromDB converts a scanned column value into its payload form
func fromDB(col Column, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}

	switch col.Kind {
	case KindInt:
		if n, err := toInt64(v); err == nil {
			return n
		}
	case KindBool:
		if b, err := toBool(v); err == nil {
			return b
		}
	case KindDecimal:
		if d, err := toDecimal(v); err == nil {
			return d.String()
		}
	}
	return v
}
