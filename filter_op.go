package heapdb

// Filter emits the child rows satisfying a predicate, in child order.

type Filter struct {
	opBase
	pred  Predicate
	child Operator
}

func NewFilter(pred Predicate, child Operator) (*Filter, error) {
	f := &Filter{pred: pred, child: child}
	f.fetch = f.fetchNext
	return f, nil
}

// Descriptor returns the child schema; filtering does not reshape rows.
func (f *Filter) Descriptor() *TupleDesc {
	return f.child.Descriptor()
}

func (f *Filter) Open() error {
	if f.opened {
		return DbError{IllegalStateError, "filter is already open"}
	}
	if err := f.child.Open(); err != nil {
		return err
	}
	f.markOpen()
	return nil
}

func (f *Filter) fetchNext() (*Tuple, error) {
	for {
		ok, err := f.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		t, err := f.child.Next()
		if err != nil {
			return nil, err
		}
		keep, err := f.pred.filter(t)
		if err != nil {
			return nil, err
		}
		if keep {
			return t, nil
		}
	}
}

func (f *Filter) Rewind() error {
	if !f.opened {
		return DbError{IllegalStateError, "filter is not open"}
	}
	if err := f.child.Rewind(); err != nil {
		return err
	}
	f.lookahead = nil
	return nil
}

func (f *Filter) Close() error {
	f.markClosed()
	return f.child.Close()
}

func (f *Filter) Children() []Operator {
	return []Operator{f.child}
}

func (f *Filter) SetChildren(children []Operator) error {
	if err := checkArity(children, 1); err != nil {
		return err
	}
	f.child = children[0]
	return nil
}
