// Package features aggregates normalized transfers into per-address feature
// vectors and tags them with data quality assessments.
package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Non-feature columns of a record.
const (
	ColumnAddress         = "address"
	ColumnClass           = "class"
	TagDataQualityWarning = "data_quality_warning"
	TagPriceQuality       = "price_quality"
	TagBehaviorPattern    = "behavior_pattern"
)

// TagColumns lists the quality tag columns in output order.
var TagColumns = []string{TagDataQualityWarning, TagPriceQuality, TagBehaviorPattern}

// IsReservedColumn reports whether name is the address, class or a tag column.
func IsReservedColumn(name string) bool {
	switch name {
	case ColumnAddress, ColumnClass, TagDataQualityWarning, TagPriceQuality, TagBehaviorPattern:
		return true
	}
	return false
}

// Vector is an insertion-ordered set of named feature values.
// JSON encoding preserves the order and writes infinities as "inf"/"-inf".
type Vector struct {
	names  []string
	values map[string]float64
}

// NewVector returns an empty Vector.
func NewVector() *Vector {
	return &Vector{values: make(map[string]float64)}
}

// Set stores v under name. A name keeps the position of its first Set.
func (v *Vector) Set(name string, value float64) {
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	v.values[name] = value
}

// Get returns the value of name and whether it is present.
func (v *Vector) Get(name string) (float64, bool) {
	value, ok := v.values[name]
	return value, ok
}

// Value returns the value of name, or 0 when absent.
func (v *Vector) Value(name string) float64 {
	return v.values[name]
}

// Names returns the feature names in insertion order.
func (v *Vector) Names() []string {
	return append([]string(nil), v.names...)
}

// Len returns the number of features.
func (v *Vector) Len() int {
	return len(v.names)
}

// FormatValue renders a feature value for CSV and JSON output.
func FormatValue(value float64) string {
	switch {
	case math.IsInf(value, 1):
		return "inf"
	case math.IsInf(value, -1):
		return "-inf"
	case math.IsNaN(value):
		return "nan"
	}
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// ParseValue parses a value written by FormatValue. It accepts any float
// syntax understood by strconv, including "inf" and "nan".
func ParseValue(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func appendValue(buf *bytes.Buffer, value float64) error {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		buf.WriteString(strconv.Quote(FormatValue(value)))
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func appendKey(buf *bytes.Buffer, name string) {
	b, _ := json.Marshal(name)
	buf.Write(b)
	buf.WriteByte(':')
}

func (v *Vector) appendFields(buf *bytes.Buffer) error {
	for i, name := range v.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		appendKey(buf, name)
		if err := appendValue(buf, v.values[name]); err != nil {
			return fmt.Errorf("failed to encode feature %s: %w", name, err)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v *Vector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := v.appendFields(&buf); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Vector) UnmarshalJSON(data []byte) error {
	*v = Vector{values: make(map[string]float64)}
	return decodeObject(data, func(name string, raw json.RawMessage) error {
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("feature %s: %w", name, err)
		}
		v.Set(name, value)
		return nil
	})
}

func decodeValue(raw json.RawMessage) (float64, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return ParseValue(s)
	}
	var value float64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, err
	}
	return value, nil
}

// decodeObject walks the members of a JSON object in document order.
func decodeObject(data []byte, member func(name string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := member(name, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// Quality holds the categorical data quality tags of a record.
type Quality struct {
	DataQualityWarning string `json:"data_quality_warning"`
	PriceQuality       string `json:"price_quality"`
	BehaviorPattern    string `json:"behavior_pattern"`
}

// Get returns the tag stored under column name.
func (q Quality) Get(name string) string {
	switch name {
	case TagDataQualityWarning:
		return q.DataQualityWarning
	case TagPriceQuality:
		return q.PriceQuality
	case TagBehaviorPattern:
		return q.BehaviorPattern
	}
	return ""
}

// Set stores a tag by column name. Unknown names are ignored.
func (q *Quality) Set(name, value string) {
	switch name {
	case TagDataQualityWarning:
		q.DataQualityWarning = value
	case TagPriceQuality:
		q.PriceQuality = value
	case TagBehaviorPattern:
		q.BehaviorPattern = value
	}
}

// Record is the feature row of one address. Address and Class are assigned
// by the orchestrator; Class is -1 for unlabeled addresses.
type Record struct {
	Address  string
	Class    int
	Features *Vector
	Quality  Quality
}

// MarshalJSON writes a flat object: features in order, then address, class
// and the quality tags.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r.Features != nil && r.Features.Len() > 0 {
		if err := r.Features.appendFields(&buf); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}
	appendKey(&buf, ColumnAddress)
	b, _ := json.Marshal(r.Address)
	buf.Write(b)
	buf.WriteByte(',')
	appendKey(&buf, ColumnClass)
	buf.WriteString(strconv.Itoa(r.Class))
	for _, tag := range TagColumns {
		buf.WriteByte(',')
		appendKey(&buf, tag)
		b, _ := json.Marshal(r.Quality.Get(tag))
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flat object written by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	*r = Record{Features: NewVector()}
	return decodeObject(data, func(name string, raw json.RawMessage) error {
		switch name {
		case ColumnAddress:
			return json.Unmarshal(raw, &r.Address)
		case ColumnClass:
			var class float64
			if err := json.Unmarshal(raw, &class); err != nil {
				return fmt.Errorf("class: %w", err)
			}
			r.Class = int(class)
			return nil
		case TagDataQualityWarning, TagPriceQuality, TagBehaviorPattern:
			var tag string
			if err := json.Unmarshal(raw, &tag); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			r.Quality.Set(name, tag)
			return nil
		}
		value, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("feature %s: %w", name, err)
		}
		r.Features.Set(name, value)
		return nil
	})
}
