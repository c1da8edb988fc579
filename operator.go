package heapdb

// opBase carries the lifecycle state shared by every operator: the open
// flag and a one-tuple lookahead produced by the operator's fetchNext.
// fetchNext returns the next row or nil at end of stream.
//
// Policy for composite operators: Open acquires child resources first and
// marks self open last; Close unmarks self first and releases children in
// reverse, and is safe to call on a partially opened tree.

type opBase struct {
	fetch     func() (*Tuple, error)
	opened    bool
	lookahead *Tuple
}

func (b *opBase) markOpen() {
	b.opened = true
	b.lookahead = nil
}

func (b *opBase) markClosed() {
	b.opened = false
	b.lookahead = nil
}

// HasNext is idempotent between Next calls: the first call after a Next
// fetches and caches one row, later calls answer from the cache.
func (b *opBase) HasNext() (bool, error) {
	if !b.opened {
		return false, DbError{IllegalStateError, "operator is not open"}
	}
	if b.lookahead == nil {
		t, err := b.fetch()
		if err != nil {
			return false, err
		}
		b.lookahead = t
	}
	return b.lookahead != nil, nil
}

func (b *opBase) Next() (*Tuple, error) {
	ok, err := b.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, DbError{NoMoreTuplesError, "operator is exhausted"}
	}
	t := b.lookahead
	b.lookahead = nil
	return t, nil
}

// checkArity validates a SetChildren call.
func checkArity(children []Operator, want int) error {
	if len(children) != want {
		return DbError{IllegalStateError, "wrong number of children"}
	}
	return nil
}

// drainChild pulls every remaining row of a child into a slice. Used by
// the blocking order-by operator.
func drainChild(child Operator) ([]*Tuple, error) {
	var all []*Tuple
	for {
		ok, err := child.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return all, nil
		}
		t, err := child.Next()
		if err != nil {
			return nil, err
		}
		all = append(all, t)
	}
}
