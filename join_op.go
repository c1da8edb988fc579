package heapdb

// Join is a nested-loops join: the left child is walked once, and for each
// left row the right child is walked to exhaustion and rewound. Output rows
// are the left fields followed by the right fields, ordered by (left
// position, right position among matches).

type Join struct {
	opBase
	pred        JoinPredicate
	left, right Operator
	curLeft     *Tuple
}

func NewJoin(left Operator, pred JoinPredicate, right Operator) (*Join, error) {
	j := &Join{pred: pred, left: left, right: right}
	j.fetch = j.fetchNext
	return j, nil
}

// Descriptor returns the left schema with the right schema appended.
func (j *Join) Descriptor() *TupleDesc {
	return j.left.Descriptor().merge(j.right.Descriptor())
}

func (j *Join) Open() error {
	if j.opened {
		return DbError{IllegalStateError, "join is already open"}
	}
	if err := j.left.Open(); err != nil {
		return err
	}
	if err := j.right.Open(); err != nil {
		j.left.Close()
		return err
	}
	j.curLeft = nil
	j.markOpen()
	return nil
}

func (j *Join) fetchNext() (*Tuple, error) {
	for {
		if j.curLeft == nil {
			ok, err := j.left.HasNext()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			l, err := j.left.Next()
			if err != nil {
				return nil, err
			}
			j.curLeft = l
		}
		for {
			ok, err := j.right.HasNext()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			r, err := j.right.Next()
			if err != nil {
				return nil, err
			}
			match, err := j.pred.filter(j.curLeft, r)
			if err != nil {
				return nil, err
			}
			if match {
				return joinTuples(j.curLeft, r), nil
			}
		}
		j.curLeft = nil
		if err := j.right.Rewind(); err != nil {
			return nil, err
		}
	}
}

func (j *Join) Rewind() error {
	if !j.opened {
		return DbError{IllegalStateError, "join is not open"}
	}
	if err := j.left.Rewind(); err != nil {
		return err
	}
	if err := j.right.Rewind(); err != nil {
		return err
	}
	j.curLeft = nil
	j.lookahead = nil
	return nil
}

func (j *Join) Close() error {
	j.markClosed()
	j.curLeft = nil
	errL := j.left.Close()
	errR := j.right.Close()
	if errL != nil {
		return errL
	}
	return errR
}

func (j *Join) Children() []Operator {
	return []Operator{j.left, j.right}
}

func (j *Join) SetChildren(children []Operator) error {
	if err := checkArity(children, 2); err != nil {
		return err
	}
	j.left, j.right = children[0], children[1]
	return nil
}
