package flatgeobuf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb/geojson"
)

// schema is the ordered column layout shared by the header and every feature.
type schema struct {
	names []string
	types []flattypes.ColumnType
	index map[string]int
}

// inferSchema collects every property name across features, sorted, and
// widens each column to a type that holds all its values.
func inferSchema(features []*geojson.Feature) schema {
	types := make(map[string]flattypes.ColumnType)
	for _, f := range features {
		if f == nil {
			continue
		}
		for name, v := range f.Properties {
			if v == nil {
				if _, ok := types[name]; !ok {
					types[name] = flattypes.ColumnTypeString
				}
				continue
			}
			t := columnType(v)
			if prev, ok := types[name]; ok {
				t = widen(prev, t)
			}
			types[name] = t
		}
	}

	s := schema{index: make(map[string]int, len(types))}
	for name := range types {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	for i, name := range s.names {
		s.types = append(s.types, types[name])
		s.index[name] = i
	}
	return s
}

func (s schema) columns(b *flatbuffers.Builder) []*writer.Column {
	cols := make([]*writer.Column, 0, len(s.names))
	for i, name := range s.names {
		col := writer.NewColumn(b)
		col.SetName(name)
		col.SetTitle(name)
		col.SetType(s.types[i])
		col.SetNullable(true)
		cols = append(cols, col)
	}
	return cols
}

func columnType(v interface{}) flattypes.ColumnType {
	switch n := v.(type) {
	case bool:
		return flattypes.ColumnTypeBool
	case int, int8, int16, int32, int64, uint8, uint16, uint32:
		return flattypes.ColumnTypeLong
	case float32, float64:
		return flattypes.ColumnTypeDouble
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return flattypes.ColumnTypeLong
		}
		return flattypes.ColumnTypeDouble
	case string:
		return flattypes.ColumnTypeString
	}
	return flattypes.ColumnTypeJson
}

func widen(a, b flattypes.ColumnType) flattypes.ColumnType {
	switch {
	case a == b:
		return a
	case a == flattypes.ColumnTypeJson || b == flattypes.ColumnTypeJson:
		return flattypes.ColumnTypeJson
	case a == flattypes.ColumnTypeString || b == flattypes.ColumnTypeString:
		return flattypes.ColumnTypeString
	case isNumeric(a) && isNumeric(b):
		return flattypes.ColumnTypeDouble
	}
	return flattypes.ColumnTypeJson
}

func isNumeric(t flattypes.ColumnType) bool {
	return t == flattypes.ColumnTypeLong || t == flattypes.ColumnTypeDouble
}

// encode writes props as (uint16 column index, value) pairs in column order.
// Values are written with the column's type, not the value's own type, so a
// column widened to Double still decodes every row the same way.
func (s schema) encode(props geojson.Properties) ([]byte, error) {
	var buf bytes.Buffer
	for i, name := range s.names {
		v, ok := props[name]
		if !ok || v == nil {
			continue
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint16(i))
		if err := writeValue(&buf, s.types[i], v); err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, t flattypes.ColumnType, v interface{}) error {
	switch t {
	case flattypes.ColumnTypeBool:
		b, _ := v.(bool)
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case flattypes.ColumnTypeLong:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("%v is not an integer", v)
		}
		return binary.Write(buf, binary.LittleEndian, n)
	case flattypes.ColumnTypeDouble:
		f, ok := toFloat64(v)
		if !ok {
			return fmt.Errorf("%v is not a number", v)
		}
		return binary.Write(buf, binary.LittleEndian, math.Float64bits(f))
	case flattypes.ColumnTypeString:
		writeString(buf, toString(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeString(buf, string(data))
	}
	return nil
}

// writeString uses the FlatGeobuf uint32 length prefix.
func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func decodeProperties(data []byte, h *flattypes.Header) (geojson.Properties, error) {
	props := make(geojson.Properties)
	for off := 0; off < len(data); {
		if off+2 > len(data) {
			return props, fmt.Errorf("truncated column index at %d", off)
		}
		idx := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2

		var col flattypes.Column
		if idx >= h.ColumnsLength() || !h.Columns(&col, idx) {
			return props, fmt.Errorf("column %d out of range", idx)
		}
		v, n, err := readValue(data[off:], col.Type())
		if err != nil {
			return props, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		props[string(col.Name())] = v
		off += n
	}
	return props, nil
}

func readValue(data []byte, t flattypes.ColumnType) (interface{}, int, error) {
	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("need %d bytes, have %d", n, len(data))
		}
		return nil
	}

	switch t {
	case flattypes.ColumnTypeBool:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return data[0] != 0, 1, nil
	case flattypes.ColumnTypeLong:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return int64(binary.LittleEndian.Uint64(data)), 8, nil
	case flattypes.ColumnTypeDouble:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), 8, nil
	case flattypes.ColumnTypeString, flattypes.ColumnTypeJson:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		n := int(binary.LittleEndian.Uint32(data))
		if err := need(4 + n); err != nil {
			return nil, 0, err
		}
		s := string(data[4 : 4+n])
		if t == flattypes.ColumnTypeString {
			return s, 4 + n, nil
		}
		var v interface{}
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, 0, err
		}
		return v, 4 + n, nil
	}
	return nil, 0, fmt.Errorf("column type %s not supported", flattypes.EnumNamesColumnType[t])
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	}
	return fmt.Sprint(v)
}
