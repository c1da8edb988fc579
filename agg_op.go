package heapdb

// Aggregate computes a grouped aggregate over its child. It is a blocking
// operator: Open drains the child completely, folding each row into a
// per-group accumulator keyed by the group field's value, then the
// operator emits one result row per group in first-seen group order.
// Memory footprint is O(distinct groups).

import "fmt"

// NoGrouping selects a single ungrouped aggregate over all rows.
const NoGrouping = -1

type Aggregate struct {
	opBase
	child      Operator
	op         AggOp
	aggField   int
	groupField int
	alias      string

	groupKeys []DBValue
	groups    map[DBValue]AggState
	pos       int
}

// NewAggregate builds an aggregate of op over aggField, grouped by
// groupField (or NoGrouping). Aggregates other than count over string
// fields fail with UnsupportedAggError.
func NewAggregate(child Operator, op AggOp, aggField int, groupField int) (*Aggregate, error) {
	desc := child.Descriptor()
	if aggField < 0 || aggField >= len(desc.Fields) {
		return nil, DbError{IllegalOperationError, fmt.Sprintf("aggregate field %d out of range", aggField)}
	}
	if groupField != NoGrouping && (groupField < 0 || groupField >= len(desc.Fields)) {
		return nil, DbError{IllegalOperationError, fmt.Sprintf("group field %d out of range", groupField)}
	}
	// Validate the op/type combination up front.
	if _, err := newAggState(op, desc.Fields[aggField].Ftype); err != nil {
		return nil, err
	}
	a := &Aggregate{
		child:      child,
		op:         op,
		aggField:   aggField,
		groupField: groupField,
		alias:      fmt.Sprintf("%s(%s)", op, desc.Fields[aggField].Fname),
	}
	a.fetch = a.fetchNext
	return a, nil
}

// Descriptor returns one int column named op(field) for an ungrouped
// aggregate, or the group column followed by that aggregate column.
func (a *Aggregate) Descriptor() *TupleDesc {
	aggCol := FieldType{Fname: a.alias, Ftype: IntType}
	if a.groupField == NoGrouping {
		return &TupleDesc{Fields: []FieldType{aggCol}}
	}
	g := a.child.Descriptor().Fields[a.groupField]
	return &TupleDesc{Fields: []FieldType{{Fname: g.Fname, TableQualifier: g.TableQualifier, Ftype: g.Ftype}, aggCol}}
}

func (a *Aggregate) Open() error {
	if a.opened {
		return DbError{IllegalStateError, "aggregate is already open"}
	}
	if err := a.child.Open(); err != nil {
		return err
	}
	if err := a.aggregateChild(); err != nil {
		a.child.Close()
		return err
	}
	a.pos = 0
	a.markOpen()
	return nil
}

func (a *Aggregate) aggregateChild() error {
	a.groupKeys = nil
	a.groups = make(map[DBValue]AggState)
	ftype := a.child.Descriptor().Fields[a.aggField].Ftype

	if a.groupField == NoGrouping {
		// The ungrouped aggregate has exactly one output row even over an
		// empty input.
		st, err := newAggState(a.op, ftype)
		if err != nil {
			return err
		}
		st.Init(a.alias, a.aggField)
		a.groupKeys = append(a.groupKeys, nil)
		a.groups[nil] = st
	}

	for {
		ok, err := a.child.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		t, err := a.child.Next()
		if err != nil {
			return err
		}
		var key DBValue
		if a.groupField != NoGrouping {
			key = t.Fields[a.groupField]
		}
		st, seen := a.groups[key]
		if !seen {
			st, err = newAggState(a.op, ftype)
			if err != nil {
				return err
			}
			st.Init(a.alias, a.aggField)
			a.groupKeys = append(a.groupKeys, key)
			a.groups[key] = st
		}
		st.AddTuple(t)
	}
}

func (a *Aggregate) fetchNext() (*Tuple, error) {
	if a.pos >= len(a.groupKeys) {
		return nil, nil
	}
	key := a.groupKeys[a.pos]
	a.pos++
	res := a.groups[key].Finalize()
	if a.groupField == NoGrouping {
		return &Tuple{Desc: *a.Descriptor(), Fields: res.Fields}, nil
	}
	return &Tuple{Desc: *a.Descriptor(), Fields: []DBValue{key, res.Fields[0]}}, nil
}

// Rewind replays the already-computed results from the first group.
func (a *Aggregate) Rewind() error {
	if !a.opened {
		return DbError{IllegalStateError, "aggregate is not open"}
	}
	a.pos = 0
	a.lookahead = nil
	return nil
}

func (a *Aggregate) Close() error {
	a.markClosed()
	a.groups = nil
	a.groupKeys = nil
	a.pos = 0
	return a.child.Close()
}

func (a *Aggregate) Children() []Operator {
	return []Operator{a.child}
}

func (a *Aggregate) SetChildren(children []Operator) error {
	if err := checkArity(children, 1); err != nil {
		return err
	}
	a.child = children[0]
	return nil
}
