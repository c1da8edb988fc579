package heapdb

// Limit emits the first n rows of its child.

import "fmt"

type Limit struct {
	opBase
	limit int
	count int
	child Operator
}

func NewLimit(limit int, child Operator) (*Limit, error) {
	if limit < 0 {
		return nil, DbError{IllegalOperationError, fmt.Sprintf("negative limit %d", limit)}
	}
	l := &Limit{limit: limit, child: child}
	l.fetch = l.fetchNext
	return l, nil
}

func (l *Limit) Descriptor() *TupleDesc {
	return l.child.Descriptor()
}

func (l *Limit) Open() error {
	if l.opened {
		return DbError{IllegalStateError, "limit is already open"}
	}
	if err := l.child.Open(); err != nil {
		return err
	}
	l.count = 0
	l.markOpen()
	return nil
}

func (l *Limit) fetchNext() (*Tuple, error) {
	if l.count >= l.limit {
		return nil, nil
	}
	ok, err := l.child.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	t, err := l.child.Next()
	if err != nil {
		return nil, err
	}
	l.count++
	return t, nil
}

func (l *Limit) Rewind() error {
	if !l.opened {
		return DbError{IllegalStateError, "limit is not open"}
	}
	if err := l.child.Rewind(); err != nil {
		return err
	}
	l.count = 0
	l.lookahead = nil
	return nil
}

func (l *Limit) Close() error {
	l.markClosed()
	return l.child.Close()
}

func (l *Limit) Children() []Operator {
	return []Operator{l.child}
}

func (l *Limit) SetChildren(children []Operator) error {
	if err := checkArity(children, 1); err != nil {
		return err
	}
	l.child = children[0]
	return nil
}
