package heapdb

import (
	"path/filepath"
	"testing"
)

func TestProject(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "id", Ftype: IntType},
		{Fname: "name", Ftype: StringType},
	}}
	rows := []*Tuple{
		{Desc: *td, Fields: []DBValue{IntField{1}, StringField{"a"}}},
		{Desc: *td, Fields: []DBValue{IntField{2}, StringField{"b"}}},
	}
	p, err := NewProject([]int{1}, []string{"n"}, false, newSliceOp(td, rows))
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	if err := p.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()

	desc := p.Descriptor()
	if len(desc.Fields) != 1 || desc.Fields[0].Fname != "n" || desc.Fields[0].Ftype != StringType {
		t.Fatalf("projected schema is wrong: %v", desc.Fields)
	}
	got := drainOp(t, p)
	if len(got) != 2 || got[0].Fields[0] != (StringField{"a"}) || got[1].Fields[0] != (StringField{"b"}) {
		t.Errorf("projection emitted wrong rows")
	}
}

func TestProjectDistinct(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	p, err := NewProject([]int{0}, []string{"v"}, true, newSliceOp(td, intRows(td, 1, 2, 1, 3, 2)))
	if err != nil {
		t.Fatalf("NewProject: %v", err)
	}
	if err := p.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()
	got := drainOp(t, p)
	want := []int32{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("distinct projection returned %d rows, want %d", len(got), len(want))
	}
	for i, tup := range got {
		if tup.Fields[0] != (IntField{want[i]}) {
			t.Errorf("row %d is %v, want %d", i, tup.PrettyPrintString(false), want[i])
		}
	}
}

func TestOrderBy(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{
		{Fname: "g", Ftype: StringType},
		{Fname: "v", Ftype: IntType},
	}}
	row := func(g string, v int32) *Tuple {
		return &Tuple{Desc: *td, Fields: []DBValue{StringField{g}, IntField{v}}}
	}
	rows := []*Tuple{row("b", 2), row("a", 3), row("b", 1), row("a", 1)}
	// Sort by g ascending, then v descending.
	o, err := NewOrderBy([]int{0, 1}, []bool{true, false}, newSliceOp(td, rows))
	if err != nil {
		t.Fatalf("NewOrderBy: %v", err)
	}
	if err := o.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()
	got := drainOp(t, o)
	want := []*Tuple{row("a", 3), row("a", 1), row("b", 2), row("b", 1)}
	if len(got) != len(want) {
		t.Fatalf("order by returned %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].equals(want[i]) {
			t.Errorf("row %d is %v, want %v", i, got[i].PrettyPrintString(false), want[i].PrettyPrintString(false))
		}
	}
}

func TestLimit(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	l, err := NewLimit(2, newSliceOp(td, intRows(td, 1, 2, 3, 4)))
	if err != nil {
		t.Fatalf("NewLimit: %v", err)
	}
	if err := l.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	got := drainOp(t, l)
	if len(got) != 2 {
		t.Fatalf("limit returned %d rows, want 2", len(got))
	}
	if err := l.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if got := drainOp(t, l); len(got) != 2 {
		t.Errorf("rewound limit returned %d rows, want 2", len(got))
	}
}

func TestInsertAndDeleteOps(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	bp, _ := NewBufferPool(10)
	hf, err := NewHeapFile(filepath.Join(t.TempDir(), "ops.dat"), td, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	tid := NewTID()
	bp.BeginTransaction(tid)

	ins := NewInsertOp(hf, newSliceOp(td, intRows(td, 1, 2, 3, 4)), tid)
	if err := ins.Open(); err != nil {
		t.Fatalf("Open insert: %v", err)
	}
	got := drainOp(t, ins)
	ins.Close()
	if len(got) != 1 || got[0].Fields[0] != (IntField{4}) {
		t.Fatalf("insert count = %v, want 4", got)
	}

	// Delete the rows greater than 2 through a filtered scan.
	scan := NewSeqScan(hf, tid, "")
	f, _ := NewFilter(NewPredicate(0, OpGt, IntField{2}), scan)
	del := NewDeleteOp(hf, f, tid)
	if err := del.Open(); err != nil {
		t.Fatalf("Open delete: %v", err)
	}
	got = drainOp(t, del)
	del.Close()
	if len(got) != 1 || got[0].Fields[0] != (IntField{2}) {
		t.Fatalf("delete count = %v, want 2", got)
	}

	tid2 := NewTID()
	bp.CommitTransaction(tid)
	bp.BeginTransaction(tid2)
	left := scanAll(t, hf, tid2)
	if len(left) != 2 {
		t.Fatalf("%d rows remain, want 2", len(left))
	}
	for _, tup := range left {
		if tup.Fields[0].EvalPred(IntField{2}, OpGt) {
			t.Errorf("row %v should have been deleted", tup.PrettyPrintString(false))
		}
	}
}
