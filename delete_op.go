package heapdb

// DeleteOp removes the rows produced by its child from a DBFile and emits a
// single tuple with a "count" field holding the number of rows deleted.
// Child rows must carry record ids, so the child is typically a scan or a
// filter over one.

type DeleteOp struct {
	opBase
	deleteFile DBFile
	child      Operator
	tid        TransactionID
	done       bool
}

func NewDeleteOp(deleteFile DBFile, child Operator, tid TransactionID) *DeleteOp {
	op := &DeleteOp{deleteFile: deleteFile, child: child, tid: tid}
	op.fetch = op.fetchNext
	return op
}

func (op *DeleteOp) Descriptor() *TupleDesc {
	return &TupleDesc{Fields: []FieldType{{Fname: "count", Ftype: IntType}}}
}

func (op *DeleteOp) Open() error {
	if op.opened {
		return DbError{IllegalStateError, "delete is already open"}
	}
	if err := op.child.Open(); err != nil {
		return err
	}
	op.done = false
	op.markOpen()
	return nil
}

func (op *DeleteOp) fetchNext() (*Tuple, error) {
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
		if err := op.deleteFile.deleteTuple(t, op.tid); err != nil {
			return nil, err
		}
		count++
	}
	op.done = true
	return &Tuple{Desc: *op.Descriptor(), Fields: []DBValue{IntField{count}}}, nil
}

func (op *DeleteOp) Rewind() error {
	if !op.opened {
		return DbError{IllegalStateError, "delete is not open"}
	}
	if err := op.child.Rewind(); err != nil {
		return err
	}
	op.done = false
	op.lookahead = nil
	return nil
}

func (op *DeleteOp) Close() error {
	op.markClosed()
	return op.child.Close()
}

func (op *DeleteOp) Children() []Operator {
	return []Operator{op.child}
}

func (op *DeleteOp) SetChildren(children []Operator) error {
	if err := checkArity(children, 1); err != nil {
		return err
	}
	op.child = children[0]
	return nil
}
