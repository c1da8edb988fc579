package heapdb

// OrderBy sorts the child rows on one or more fields. Blocking: Open drains
// the child and sorts in memory; ties keep child order (stable sort).

import (
	"fmt"

	"golang.org/x/exp/slices"
)

type OrderBy struct {
	opBase
	fields    []int
	ascending []bool
	child     Operator

	sorted []*Tuple
	pos    int
}

// NewOrderBy sorts on fields in order of significance; ascending[i] selects
// the direction for fields[i].
func NewOrderBy(fields []int, ascending []bool, child Operator) (*OrderBy, error) {
	if len(fields) != len(ascending) {
		return nil, DbError{IllegalOperationError, fmt.Sprintf("%d sort fields but %d direction flags", len(fields), len(ascending))}
	}
	desc := child.Descriptor()
	for _, i := range fields {
		if i < 0 || i >= len(desc.Fields) {
			return nil, DbError{IllegalOperationError, fmt.Sprintf("sort field %d out of range", i)}
		}
	}
	o := &OrderBy{fields: fields, ascending: ascending, child: child}
	o.fetch = o.fetchNext
	return o, nil
}

// Descriptor returns the child schema; ordering does not reshape rows.
func (o *OrderBy) Descriptor() *TupleDesc {
	return o.child.Descriptor()
}

func (o *OrderBy) Open() error {
	if o.opened {
		return DbError{IllegalStateError, "order by is already open"}
	}
	if err := o.child.Open(); err != nil {
		return err
	}
	all, err := drainChild(o.child)
	if err != nil {
		o.child.Close()
		return err
	}
	slices.SortStableFunc(all, o.compare)
	o.sorted = all
	o.pos = 0
	o.markOpen()
	return nil
}

func (o *OrderBy) compare(a, b *Tuple) int {
	for k, i := range o.fields {
		ord, err := compareFields(a.Fields[i], b.Fields[i])
		if err != nil || ord == OrderedEqual {
			continue
		}
		less := ord == OrderedLessThan
		if !o.ascending[k] {
			less = !less
		}
		if less {
			return -1
		}
		return 1
	}
	return 0
}

func (o *OrderBy) fetchNext() (*Tuple, error) {
	if o.pos >= len(o.sorted) {
		return nil, nil
	}
	t := o.sorted[o.pos]
	o.pos++
	return t, nil
}

// Rewind replays the sorted rows from the start.
func (o *OrderBy) Rewind() error {
	if !o.opened {
		return DbError{IllegalStateError, "order by is not open"}
	}
	o.pos = 0
	o.lookahead = nil
	return nil
}

func (o *OrderBy) Close() error {
	o.markClosed()
	o.sorted = nil
	o.pos = 0
	return o.child.Close()
}

func (o *OrderBy) Children() []Operator {
	return []Operator{o.child}
}

func (o *OrderBy) SetChildren(children []Operator) error {
	if err := checkArity(children, 1); err != nil {
		return err
	}
	o.child = children[0]
	return nil
}
