package heapdb

// InsertOp drains its child into a DBFile and emits a single tuple with a
// "count" field holding the number of rows inserted.

type InsertOp struct {
	opBase
	insertFile DBFile
	child      Operator
	tid        TransactionID
	done       bool
}

func NewInsertOp(insertFile DBFile, child Operator, tid TransactionID) *InsertOp {
	op := &InsertOp{insertFile: insertFile, child: child, tid: tid}
	op.fetch = op.fetchNext
	return op
}

func (op *InsertOp) Descriptor() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}
}

func (op *InsertOp) Open() error {
	if op.opened {
		return DbError{IllegalStateError, "insert is already open"}
	}
	if err := op.child.Open(); err != nil {
		return err
	}
	op.done = false
	op.markOpen()
	return nil
}

func (op *InsertOp) fetchNext() (*Tuple, error) {
	if op.done {
		return nil, nil
	}
	var count int32
	for {
		ok, err := op.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		t, err := op.child.Next()
		if err != nil {
			return nil, err
		}
		if err := op.insertFile.insertTuple(t, op.tid); err != nil {
			return nil, err
		}
		count++
	}
	op.done = true
	return &Tuple{Desc: *op.Descriptor(), Fields: []DBValue{IntField{count}}}, nil
}

func (op *InsertOp) Rewind() error {
	if !op.opened {
		return DbError{IllegalStateError, "insert is not open"}
	}
	if err := op.child.Rewind(); err != nil {
		return err
	}
	op.done = false
	op.lookahead = nil
	return nil
}

func (op *InsertOp) Close() error {
	op.markClosed()
	return op.child.Close()
}

func (op *InsertOp) Children() []Operator {
	return []Operator{op.child}
}

func (op *InsertOp) SetChildren(children []Operator) error {
	if err := checkArity(children, 1); err != nil {
		return err
	}
	op.child = children[0]
	return nil
}
