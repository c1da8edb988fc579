package heapdb

// Aggregation states. Each AggState accumulates one aggregate over one
// group's rows; the Aggregate operator builds a fresh state per group.

import "fmt"

// AggOp is a supported aggregate operator. All five apply to int fields;
// strings support only CountAgg.
type AggOp int

const (
	MinAgg AggOp = iota
	MaxAgg
	SumAgg
	AvgAgg
	CountAgg
)

func (op AggOp) String() string {
	switch op {
	case MinAgg:
		return "min"
	case MaxAgg:
		return "max"
	case SumAgg:
		return "sum"
	case AvgAgg:
		return "avg"
	case CountAgg:
		return "count"
	}
	return "??"
}

// AggState is the per-group accumulator interface.
type AggState interface {
	// Init resets the state to aggregate values of the tuple field at
	// index field, emitting the result under alias.
	Init(alias string, field int) error

	// Copy makes a fresh state with the same alias and field.
	Copy() AggState

	// AddTuple folds one row into the state.
	AddTuple(t *Tuple)

	// Finalize returns the aggregation result as a one-field tuple.
	Finalize() *Tuple

	// GetTupleDesc describes the tuple Finalize returns.
	GetTupleDesc() *TupleDesc
}

// newAggState builds the accumulator for op over a field of type ftype.
// Combinations outside the supported set fail with UnsupportedAggError.
func newAggState(op AggOp, ftype DBType) (AggState, error) {
	if ftype == StringType && op != CountAgg {
		return nil, DbError{UnsupportedAggError, fmt.Sprintf("%s aggregate is not supported on string fields", op)}
	}
	if ftype != IntType && ftype != StringType {
		return nil, DbError{UnsupportedAggError, fmt.Sprintf("cannot aggregate fields of type %s", ftype)}
	}
	switch op {
	case CountAgg:
		return &CountAggState{}, nil
	case SumAgg:
		return &SumAggState{}, nil
	case AvgAgg:
		return &AvgAggState{}, nil
	case MinAgg:
		return &MinAggState{}, nil
	case MaxAgg:
		return &MaxAggState{}, nil
	}
	return nil, DbError{UnsupportedAggError, fmt.Sprintf("unknown aggregate operator %d", op)}
}

func intAggDesc(alias string) *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: alias, Ftype: IntType}}}
}

// CountAggState implements COUNT.
type CountAggState struct {
	alias string
	field int
	count int
}

func (a *CountAggState) Init(alias string, field int) error {
	a.alias = alias
	a.field = field
	a.count = 0
	return nil
}

func (a *CountAggState) Copy() AggState {
	return &CountAggState{a.alias, a.field, a.count}
}

func (a *CountAggState) AddTuple(t *Tuple) {
	a.count++
}

func (a *CountAggState) Finalize() *Tuple {
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{int32(a.count)}}}
}

func (a *CountAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

// SumAggState implements SUM. The accumulator is 64-bit and narrows to the
// 32-bit field width on emit.
type SumAggState struct {
	alias string
	field int
	sum   int64
}

func (a *SumAggState) Init(alias string, field int) error {
	a.alias = alias
	a.field = field
	a.sum = 0
	return nil
}

func (a *SumAggState) Copy() AggState {
	return &SumAggState{a.alias, a.field, a.sum}
}

func (a *SumAggState) AddTuple(t *Tuple) {
	v, ok := t.Fields[a.field].(IntField)
	if !ok {
		return
	}
	a.sum += int64(v.Value)
}

func (a *SumAggState) Finalize() *Tuple {
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{int32(a.sum)}}}
}

func (a *SumAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

// AvgAggState implements AVG with truncating integer division.
// A state that received no rows (the ungrouped aggregate over an empty
// input) finalizes as zero instead of dividing.
type AvgAggState struct {
	alias string
	field int
	sum   int64
	count int64
}

func (a *AvgAggState) Init(alias string, field int) error {
	a.alias = alias
	a.field = field
	a.sum = 0
	a.count = 0
	return nil
}

func (a *AvgAggState) Copy() AggState {
	return &AvgAggState{a.alias, a.field, a.sum, a.count}
}

func (a *AvgAggState) AddTuple(t *Tuple) {
	v, ok := t.Fields[a.field].(IntField)
	if !ok {
		return
	}
	a.sum += int64(v.Value)
	a.count++
}

func (a *AvgAggState) Finalize() *Tuple {
	var avg int64
	if a.count > 0 {
		avg = a.sum / a.count
	}
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{IntField{int32(avg)}}}
}

func (a *AvgAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

// MinAggState implements MIN over int fields.
type MinAggState struct {
	alias string
	field int
	min   DBValue
}

func (a *MinAggState) Init(alias string, field int) error {
	a.alias = alias
	a.field = field
	a.min = nil
	return nil
}

func (a *MinAggState) Copy() AggState {
	return &MinAggState{a.alias, a.field, a.min}
}

func (a *MinAggState) AddTuple(t *Tuple) {
	v := t.Fields[a.field]
	if a.min == nil || v.EvalPred(a.min, OpLt) {
		a.min = v
	}
}

func (a *MinAggState) Finalize() *Tuple {
	v := a.min
	if v == nil {
		v = IntField{0}
	}
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{v}}
}

func (a *MinAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}

// MaxAggState implements MAX over int fields.
type MaxAggState struct {
	alias string
	field int
	max   DBValue
}

func (a *MaxAggState) Init(alias string, field int) error {
	a.alias = alias
	a.field = field
	a.max = nil
	return nil
}

func (a *MaxAggState) Copy() AggState {
	return &MaxAggState{a.alias, a.field, a.max}
}

func (a *MaxAggState) AddTuple(t *Tuple) {
	v := t.Fields[a.field]
	if a.max == nil || v.EvalPred(a.max, OpGt) {
		a.max = v
	}
}

func (a *MaxAggState) Finalize() *Tuple {
	v := a.max
	if v == nil {
		v = IntField{0}
	}
	return &Tuple{Desc: *a.GetTupleDesc(), Fields: []DBValue{v}}
}

func (a *MaxAggState) GetTupleDesc() *TupleDesc {
	return intAggDesc(a.alias)
}
