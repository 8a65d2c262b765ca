package engine

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"duck-gateway/internal/domain"
)

// Field is one column of a result row.
type Field struct {
	Name  string
	Value any
}

// Row is a result row whose fields keep result column order. It marshals to
// a JSON object with keys in that order.
type Row []Field

// Get returns the value of the first field named name.
func (r Row) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Execute runs query, which must already be filtered, on a ready session.
// Once dispatched the statement runs to completion even if ctx ends; the
// engine interrupts statements whose context is canceled.
// Engine failures are returned as *domain.EngineError.
func (s *Session) Execute(ctx context.Context, query string) ([]Row, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(context.WithoutCancel(ctx), query)
	if err != nil {
		return nil, domain.ErrEngine(err)
	}
	defer rows.Close() //nolint:errcheck

	out, err := scanRows(rows)
	if err != nil {
		return nil, domain.ErrEngine(err)
	}
	return out, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, v := range vals {
			row[i] = Field{Name: cols[i], Value: normalizeValue(v)}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeValue converts engine values to JSON-safe forms. 64-bit and wider
// integers and decimals become decimal strings so no precision is lost in
// JSON clients.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case *big.Int:
		if x == nil {
			return nil
		}
		return x.String()
	case float64:
		return normalizeFloat(x)
	case float32:
		return normalizeFloat(float64(x))
	case duckdb.Decimal:
		return decimalString(x)
	case *duckdb.Decimal:
		if x == nil {
			return nil
		}
		return decimalString(*x)
	case duckdb.UUID:
		return uuid.UUID(x).String()
	case *duckdb.UUID:
		if x == nil {
			return nil
		}
		return uuid.UUID(*x).String()
	case duckdb.Interval:
		return map[string]any{
			"months": x.Months,
			"days":   x.Days,
			"micros": strconv.FormatInt(x.Micros, 10),
		}
	case duckdb.Map:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(normalizeValue(k))] = normalizeValue(val)
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

func normalizeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	default:
		return f
	}
}

// decimalString renders a scaled decimal without going through float64.
func decimalString(d duckdb.Decimal) string {
	if d.Value == nil {
		return "0"
	}
	digits := new(big.Int).Abs(d.Value).String()
	scale := int(d.Scale)
	if scale > 0 {
		if len(digits) <= scale {
			digits = strings.Repeat("0", scale-len(digits)+1) + digits
		}
		digits = digits[:len(digits)-scale] + "." + digits[len(digits)-scale:]
	}
	if d.Value.Sign() < 0 {
		return "-" + digits
	}
	return digits
}
