package heapdb

// Project emits the selected fields of each child row under new names,
// optionally dropping duplicate output rows.

import "fmt"

type Project struct {
	opBase
	fields   []int
	names    []string
	distinct bool
	child    Operator
	seen     map[any]struct{}
}

func NewProject(fields []int, names []string, distinct bool, child Operator) (*Project, error) {
	if len(fields) != len(names) {
		return nil, DbError{IllegalOperationError, fmt.Sprintf("%d fields selected but %d output names given", len(fields), len(names))}
	}
	desc := child.Descriptor()
	for _, i := range fields {
		if i < 0 || i >= len(desc.Fields) {
			return nil, DbError{IllegalOperationError, fmt.Sprintf("projected field %d out of range", i)}
		}
	}
	p := &Project{fields: fields, names: names, distinct: distinct, child: child}
	p.fetch = p.fetchNext
	return p, nil
}

func (p *Project) Descriptor() *TupleDesc {
	childDesc := p.child.Descriptor()
	fields := make([]FieldType, 0, len(p.fields))
	for k, i := range p.fields {
		fields = append(fields, FieldType{Fname: p.names[k], Ftype: childDesc.Fields[i].Ftype})
	}
	return &TupleDesc{Fields: fields}
}

func (p *Project) Open() error {
	if p.opened {
		return DbError{IllegalStateError, "project is already open"}
	}
	if err := p.child.Open(); err != nil {
		return err
	}
	if p.distinct {
		p.seen = make(map[any]struct{})
	}
	p.markOpen()
	return nil
}

func (p *Project) fetchNext() (*Tuple, error) {
	desc := p.Descriptor()
	for {
		ok, err := p.child.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		t, err := p.child.Next()
		if err != nil {
			return nil, err
		}
		fields := make([]DBValue, 0, len(p.fields))
		for _, i := range p.fields {
			fields = append(fields, t.Fields[i])
		}
		out := &Tuple{Desc: *desc, Fields: fields}
		if !p.distinct {
			return out, nil
		}
		key := out.tupleKey()
		if _, dup := p.seen[key]; dup {
			continue
		}
		p.seen[key] = struct{}{}
		return out, nil
	}
}

func (p *Project) Rewind() error {
	if !p.opened {
		return DbError{IllegalStateError, "project is not open"}
	}
	if err := p.child.Rewind(); err != nil {
		return err
	}
	if p.distinct {
		p.seen = make(map[any]struct{})
	}
	p.lookahead = nil
	return nil
}

func (p *Project) Close() error {
	p.markClosed()
	p.seen = nil
	return p.child.Close()
}

func (p *Project) Children() []Operator {
	return []Operator{p.child}
}

func (p *Project) SetChildren(children []Operator) error {
	if err := checkArity(children, 1); err != nil {
		return err
	}
	p.child = children[0]
	return nil
}
