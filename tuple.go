package heapdb

// This file defines the in-memory row model: DBType, FieldType, TupleDesc,
// DBValue, and Tuple, along with the on-disk field encoding.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// DBType is the type of a tuple field, e.g., IntType or StringType.
type DBType int

const (
	IntType DBType = iota
	StringType
	UnknownType // used when a field's type has not been resolved yet
)

func (t DBType) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// byteSize is the fixed width of a serialized field of this type. Ints are
// 4-byte big-endian. Strings are a 4-byte big-endian length followed by
// StringLength payload bytes, so every schema has a fixed row width.
func (t DBType) byteSize() int {
	switch t {
	case IntType:
		return 4
	case StringType:
		return 4 + StringLength
	}
	return 0
}

// FieldType describes one column: its name, optional table qualifier, and
// type. The qualifier is advisory and set by scans that carry an alias.
type FieldType struct {
	Fname          string
	TableQualifier string
	Ftype          DBType
}

// TupleDesc is the "type" of a tuple: an ordered list of field types.
type TupleDesc struct {
	Fields []FieldType
}

// equals reports whether two descriptors have the same type sequence.
// Field names are advisory and do not participate.
func (d1 *TupleDesc) equals(d2 *TupleDesc) bool {
	if len(d1.Fields) != len(d2.Fields) {
		return false
	}
	for i := range d1.Fields {
		if d1.Fields[i].Ftype != d2.Fields[i].Ftype {
			return false
		}
	}
	return true
}

// bytesPerTuple is the fixed serialized width of a row with this schema.
func (d *TupleDesc) bytesPerTuple() int {
	sz := 0
	for _, f := range d.Fields {
		sz += f.Ftype.byteSize()
	}
	return sz
}

// Given a FieldType f and a TupleDesc desc, find the best matching field in
// desc for f. A match has the same Ftype and the same name, preferring a
// match with the same TableQualifier if f has one.
func findFieldInTd(field FieldType, desc *TupleDesc) (int, error) {
	best := -1
	for i, f := range desc.Fields {
		if f.Fname == field.Fname && (f.Ftype == field.Ftype || field.Ftype == UnknownType) {
			if field.TableQualifier == "" && best != -1 {
				return 0, DbError{AmbiguousNameError, fmt.Sprintf("field name %s is ambiguous", f.Fname)}
			}
			if f.TableQualifier == field.TableQualifier || best == -1 {
				best = i
			}
		}
	}
	if best != -1 {
		return best, nil
	}
	return -1, DbError{IncompatibleTypesError, fmt.Sprintf("field %s.%s not found", field.TableQualifier, field.Fname)}
}

func (td *TupleDesc) copy() *TupleDesc {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	return &TupleDesc{Fields: fields}
}

// setTableAlias assigns the TableQualifier of every field. Used by scans
// that expose a table under an alias.
func (td *TupleDesc) setTableAlias(alias string) {
	fields := make([]FieldType, len(td.Fields))
	copy(fields, td.Fields)
	for i := range fields {
		fields[i].TableQualifier = alias
	}
	td.Fields = fields
}

// merge returns a new TupleDesc with the fields of desc2 appended onto the
// fields of desc.
func (desc *TupleDesc) merge(desc2 *TupleDesc) *TupleDesc {
	fields := make([]FieldType, 0, len(desc.Fields)+len(desc2.Fields))
	fields = append(fields, desc.Fields...)
	fields = append(fields, desc2.Fields...)
	return &TupleDesc{Fields: fields}
}

// ================== Tuple Methods ======================

// DBValue is a tuple field value.
type DBValue interface {
	// EvalPred evaluates "receiver op v". Comparisons between mismatched
	// types are false, as is OpLike on anything but strings.
	EvalPred(v DBValue, op BoolOp) bool
}

// IntField is a 32-bit integer field value.
type IntField struct {
	Value int32
}

func (f IntField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(IntField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == other.Value
	case OpNeq:
		return f.Value != other.Value
	case OpGt:
		return f.Value > other.Value
	case OpGe:
		return f.Value >= other.Value
	case OpLt:
		return f.Value < other.Value
	case OpLe:
		return f.Value <= other.Value
	}
	return false
}

// StringField is a string field value of at most StringLength bytes.
type StringField struct {
	Value string
}

func (f StringField) EvalPred(v DBValue, op BoolOp) bool {
	other, ok := v.(StringField)
	if !ok {
		return false
	}
	switch op {
	case OpEq:
		return f.Value == other.Value
	case OpNeq:
		return f.Value != other.Value
	case OpGt:
		return f.Value > other.Value
	case OpGe:
		return f.Value >= other.Value
	case OpLt:
		return f.Value < other.Value
	case OpLe:
		return f.Value <= other.Value
	case OpLike:
		return strings.Contains(f.Value, other.Value)
	}
	return false
}

// Tuple is a row: its descriptor, field values, and, when the row lives on
// a page, the record id locating it there.
type Tuple struct {
	Desc   TupleDesc
	Fields []DBValue
	Rid    recordID
}

type recordID interface {
}

func writeIntField(b *bytes.Buffer, f IntField) error {
	return binary.Write(b, binary.BigEndian, f.Value)
}

// A string is written as a 4-byte big-endian significant length followed by
// StringLength payload bytes, zero-padded past the significant prefix.
func writeStringField(b *bytes.Buffer, f StringField) error {
	s := f.Value
	if len(s) > StringLength {
		s = s[:StringLength]
	}
	if err := binary.Write(b, binary.BigEndian, int32(len(s))); err != nil {
		return err
	}
	payload := make([]byte, StringLength)
	copy(payload, s)
	_, err := b.Write(payload)
	return err
}

// writeTo serializes the tuple's fields in descriptor order. Rows are fixed
// width, so this always emits Desc.bytesPerTuple() bytes.
func (t *Tuple) writeTo(b *bytes.Buffer) error {
	for _, field := range t.Fields {
		switch f := field.(type) {
		case IntField:
			if err := writeIntField(b, f); err != nil {
				return err
			}
		case StringField:
			if err := writeStringField(b, f); err != nil {
				return err
			}
		default:
			return DbError{TypeMismatchError, fmt.Sprintf("unsupported field type %T", field)}
		}
	}
	return nil
}

func readIntField(b *bytes.Buffer) (IntField, error) {
	var v int32
	if err := binary.Read(b, binary.BigEndian, &v); err != nil {
		return IntField{}, err
	}
	return IntField{Value: v}, nil
}

func readStringField(b *bytes.Buffer) (StringField, error) {
	var n int32
	if err := binary.Read(b, binary.BigEndian, &n); err != nil {
		return StringField{}, err
	}
	payload := make([]byte, StringLength)
	if _, err := b.Read(payload); err != nil {
		return StringField{}, err
	}
	if n < 0 || int(n) > StringLength {
		return StringField{}, DbError{MalformedDataError, fmt.Sprintf("string length %d out of range", n)}
	}
	return StringField{Value: string(payload[:n])}, nil
}

// readTupleFrom reads one row with the supplied descriptor from the buffer.
func readTupleFrom(b *bytes.Buffer, desc *TupleDesc) (*Tuple, error) {
	t := &Tuple{Desc: *desc.copy()}
	for _, ft := range desc.Fields {
		switch ft.Ftype {
		case IntType:
			f, err := readIntField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		case StringType:
			f, err := readStringField(b)
			if err != nil {
				return nil, err
			}
			t.Fields = append(t.Fields, f)
		default:
			return nil, DbError{TypeMismatchError, fmt.Sprintf("cannot read field of type %v", ft.Ftype)}
		}
	}
	return t, nil
}

// equals compares descriptors and all field values. Record ids are ignored.
func (t1 *Tuple) equals(t2 *Tuple) bool {
	if t1 == nil && t2 == nil {
		return true
	}
	if t1 == nil || t2 == nil {
		return false
	}
	if !t1.Desc.equals(&t2.Desc) {
		return false
	}
	if len(t1.Fields) != len(t2.Fields) {
		return false
	}
	for i := range t1.Fields {
		if t1.Fields[i] != t2.Fields[i] {
			return false
		}
	}
	return true
}

// joinTuples produces a new tuple with the fields of t2 appended to t1,
// with a descriptor merged in the same order.
func joinTuples(t1 *Tuple, t2 *Tuple) *Tuple {
	if t1 == nil {
		return t2
	}
	if t2 == nil {
		return t1
	}
	fields := make([]DBValue, 0, len(t1.Fields)+len(t2.Fields))
	fields = append(fields, t1.Fields...)
	fields = append(fields, t2.Fields...)
	return &Tuple{
		Desc:   *t1.Desc.merge(&t2.Desc),
		Fields: fields,
	}
}

type orderByState int

const (
	OrderedLessThan orderByState = iota
	OrderedEqual
	OrderedGreaterThan
)

// compareField orders t against t2 on the values of field fieldNo.
func (t *Tuple) compareField(t2 *Tuple, fieldNo int) (orderByState, error) {
	if fieldNo < 0 || fieldNo >= len(t.Fields) || fieldNo >= len(t2.Fields) {
		return OrderedEqual, DbError{IllegalOperationError, fmt.Sprintf("field %d out of range", fieldNo)}
	}
	return compareFields(t.Fields[fieldNo], t2.Fields[fieldNo])
}

func compareFields(v1, v2 DBValue) (orderByState, error) {
	if a, ok := v1.(IntField); ok {
		if b, ok := v2.(IntField); ok {
			switch {
			case a.Value < b.Value:
				return OrderedLessThan, nil
			case a.Value > b.Value:
				return OrderedGreaterThan, nil
			default:
				return OrderedEqual, nil
			}
		}
	}
	if a, ok := v1.(StringField); ok {
		if b, ok := v2.(StringField); ok {
			switch {
			case a.Value < b.Value:
				return OrderedLessThan, nil
			case a.Value > b.Value:
				return OrderedGreaterThan, nil
			default:
				return OrderedEqual, nil
			}
		}
	}
	return OrderedEqual, DbError{IncompatibleTypesError, fmt.Sprintf("cannot compare %T and %T", v1, v2)}
}

// tupleKey computes a key usable in a map, for duplicate elimination.
func (t *Tuple) tupleKey() any {
	var buf bytes.Buffer
	t.writeTo(&buf)
	return buf.String()
}

var winWidth int = 120

func fmtCol(v string, ncols int) string {
	colWid := winWidth / ncols
	nextLen := len(v) + 3
	remLen := colWid - nextLen
	if remLen > 0 {
		spacesRight := remLen / 2
		spacesLeft := remLen - spacesRight
		return strings.Repeat(" ", spacesLeft) + v + strings.Repeat(" ", spacesRight) + " |"
	}
	return " " + v[0:colWid-4] + " |"
}

// HeaderString returns a table header for the descriptor. Aligned selects a
// fixed-width tabular format.
func (d *TupleDesc) HeaderString(aligned bool) string {
	outstr := ""
	for i, f := range d.Fields {
		tableName := ""
		if f.TableQualifier != "" {
			tableName = f.TableQualifier + "."
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(tableName+f.Fname, len(d.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, tableName+f.Fname)
		}
	}
	return outstr
}

// PrettyPrintString returns a printable rendering of the tuple.
func (t *Tuple) PrettyPrintString(aligned bool) string {
	outstr := ""
	for i, f := range t.Fields {
		str := ""
		switch f := f.(type) {
		case IntField:
			str = strconv.FormatInt(int64(f.Value), 10)
		case StringField:
			str = f.Value
		}
		if aligned {
			outstr = fmt.Sprintf("%s %s", outstr, fmtCol(str, len(t.Fields)))
		} else {
			sep := ","
			if i == 0 {
				sep = ""
			}
			outstr = fmt.Sprintf("%s%s%s", outstr, sep, str)
		}
	}
	return outstr
}
