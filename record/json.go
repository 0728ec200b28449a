package record

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// MarshalJSON writes fields in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeRecord(&buf, r, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the source field order.
func (r *Record) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	rec := v.AsRecord()
	if rec == nil {
		return errors.Errorf("expected JSON object, got %s", v.Kind())
	}
	*r = *rec
	return nil
}

// MarshalJSON writes the value. Non-finite numbers become null.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON reads any JSON value, objects keeping their field order.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// DecodeJSON parses a JSON document into a Value, preserving object key
// order.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Null(), errors.Wrap(err, "decoding json")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null(), err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			rec := New()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null(), errors.Errorf("unexpected object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Null(), err
				}
				rec.Set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return Nested(rec), nil
		case '[':
			items := []Value{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return Null(), err
				}
				items = append(items, val)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return List(items...), nil
		}
		return Null(), errors.Errorf("unexpected delimiter %v", t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), errors.Wrapf(err, "parsing number %q", t.String())
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	}
	return Null(), errors.Errorf("unexpected token %v", tok)
}

// Canonical renders v as JSON with record keys sorted, so that two
// structurally equal values produce the same string regardless of field
// order.
func Canonical(v Value) string {
	var buf bytes.Buffer
	_ = writeValue(&buf, v, true)
	return buf.String()
}

// Hash returns a 64-bit digest of the canonical form.
func Hash(v Value) uint64 {
	return xxhash.Sum64String(Canonical(v))
}

func writeValue(buf *bytes.Buffer, v Value, sorted bool) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(strconv.FormatFloat(v.n, 'f', -1, 64))
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return errors.Wrap(err, "encoding string")
		}
		buf.Write(b)
	case KindRecord:
		return writeRecord(buf, v.r, sorted)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.l {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item, sorted); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}

func writeRecord(buf *bytes.Buffer, r *Record, sorted bool) error {
	if r == nil {
		buf.WriteString("null")
		return nil
	}
	keys := r.keys
	if sorted {
		keys = r.Keys()
		sort.Strings(keys)
	}
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return errors.Wrapf(err, "encoding key %q", k)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := writeValue(buf, r.vals[k], sorted); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
