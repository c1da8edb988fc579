package heapdb

// SeqScan is the leaf operator: a sequential scan of a DBFile on behalf of
// one transaction, optionally exposing the table under an alias.

type SeqScan struct {
	opBase
	file  DBFile
	tid   TransactionID
	alias string
	desc  *TupleDesc
	iter  TupleIterator
}

func NewSeqScan(file DBFile, tid TransactionID, alias string) *SeqScan {
	desc := file.Descriptor().copy()
	if alias != "" {
		desc.setTableAlias(alias)
	}
	s := &SeqScan{file: file, tid: tid, alias: alias, desc: desc}
	s.fetch = s.fetchNext
	return s
}

func (s *SeqScan) Descriptor() *TupleDesc {
	return s.desc
}

func (s *SeqScan) Open() error {
	if s.opened {
		return DbError{IllegalStateError, "scan is already open"}
	}
	iter, err := s.file.Iterator(s.tid)
	if err != nil {
		return err
	}
	if err := iter.Open(); err != nil {
		return err
	}
	s.iter = iter
	s.markOpen()
	return nil
}

func (s *SeqScan) fetchNext() (*Tuple, error) {
	ok, err := s.iter.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	t, err := s.iter.Next()
	if err != nil {
		return nil, err
	}
	// Rows keep their record id but take the scan's qualified schema.
	return &Tuple{Desc: *s.desc, Fields: t.Fields, Rid: t.Rid}, nil
}

func (s *SeqScan) Rewind() error {
	if !s.opened {
		return DbError{IllegalStateError, "scan is not open"}
	}
	if err := s.iter.Rewind(); err != nil {
		return err
	}
	s.lookahead = nil
	return nil
}

func (s *SeqScan) Close() error {
	s.markClosed()
	if s.iter != nil {
		if err := s.iter.Close(); err != nil {
			return err
		}
		s.iter = nil
	}
	return nil
}

func (s *SeqScan) Children() []Operator {
	return nil
}

func (s *SeqScan) SetChildren(children []Operator) error {
	return checkArity(children, 0)
}
