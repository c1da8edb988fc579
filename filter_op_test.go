package heapdb

import (
	"path/filepath"
	"testing"
)

func TestFilterGreaterThan(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	child := newSliceOp(td, intRows(td, 1, 2, 3, 4, 5))
	f, err := NewFilter(NewPredicate(0, OpGt, IntField{2}), child)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	if err := f.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got := drainOp(t, f)
	want := []int32{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("filter returned %d tuples, want %d", len(got), len(want))
	}
	for i, tup := range got {
		if tup.Fields[0] != (IntField{want[i]}) {
			t.Errorf("tuple %d is %v, want %d", i, tup.PrettyPrintString(false), want[i])
		}
	}
}

func TestFilterOverHeapScan(t *testing.T) {
	// Scan + filter over a real file: rows 1..5, keep v > 2, in order.
	td := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	bp, _ := NewBufferPool(10)
	hf, err := NewHeapFile(filepath.Join(t.TempDir(), "filter.dat"), td, bp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	tid := NewTID()
	bp.BeginTransaction(tid)
	for v := int32(1); v <= 5; v++ {
		if err := hf.insertTuple(&Tuple{Desc: *td, Fields: []DBValue{IntField{v}}}, tid); err != nil {
			t.Fatalf("insertTuple: %v", err)
		}
	}

	scan := NewSeqScan(hf, tid, "t")
	f, _ := NewFilter(NewPredicate(0, OpGt, IntField{2}), scan)
	if err := f.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got := drainOp(t, f)
	want := []int32{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %d tuples, want %d", len(got), len(want))
	}
	for i, tup := range got {
		if tup.Fields[0] != (IntField{want[i]}) {
			t.Errorf("tuple %d is %v, want %d", i, tup.PrettyPrintString(false), want[i])
		}
	}
	if got[0].Desc.Fields[0].TableQualifier != "t" {
		t.Errorf("scan alias not applied: %v", got[0].Desc.Fields[0])
	}
}

func TestFilterLike(t *testing.T) {
	td := &TupleDesc{Fields: []FieldType{{Fname: "s", Ftype: StringType}}}
	rows := []*Tuple{
		{Desc: *td, Fields: []DBValue{StringField{"apple"}}},
		{Desc: *td, Fields: []DBValue{StringField{"banana"}}},
		{Desc: *td, Fields: []DBValue{StringField{"grape"}}},
	}
	f, _ := NewFilter(NewPredicate(0, OpLike, StringField{"ap"}), newSliceOp(td, rows))
	if err := f.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	got := drainOp(t, f)
	if len(got) != 2 {
		t.Fatalf("like filter returned %d tuples, want 2", len(got))
	}
	if got[0].Fields[0] != (StringField{"apple"}) || got[1].Fields[0] != (StringField{"grape"}) {
		t.Errorf("like filter kept the wrong rows")
	}
}
