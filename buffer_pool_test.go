package heapdb

import (
	"path/filepath"
	"testing"
)

// makePagedFile writes nPages committed pages of single-int tuples, one
// tuple per page slot run, and returns a fresh pool of poolSize over it.
func makePagedFile(t *testing.T, poolSize int, nPages int) (*TupleDesc, *HeapFile, *BufferPool) {
	t.Helper()
	td := &TupleDesc{Fields: []FieldType{{Fname: "v", Ftype: IntType}}}
	setupBp, err := NewBufferPool(nPages + 1)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	path := filepath.Join(t.TempDir(), "paged.dat")
	hf, err := NewHeapFile(path, td, setupBp)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	perPage := 992 // floor(4096*8 / 33) slots with a one-int schema
	tid := NewTID()
	setupBp.BeginTransaction(tid)
	for i := 0; i < nPages*perPage; i++ {
		if err := hf.insertTuple(&Tuple{Desc: *td, Fields: []DBValue{IntField{int32(i)}}}, tid); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	setupBp.CommitTransaction(tid)
	if hf.NumPages() != nPages {
		t.Fatalf("setup produced %d pages, want %d", hf.NumPages(), nPages)
	}

	bp, err := NewBufferPool(poolSize)
	if err != nil {
		t.Fatalf("NewBufferPool: %v", err)
	}
	hf.bufPool = bp
	return td, hf, bp
}

func TestBufferPoolCachesPages(t *testing.T) {
	_, hf, bp := makePagedFile(t, 5, 2)
	tid := NewTID()
	bp.BeginTransaction(tid)
	p1, err := bp.GetPage(hf, 0, tid, ReadPerm)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	p2, err := bp.GetPage(hf, 0, tid, ReadPerm)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if p1 != p2 {
		t.Errorf("repeated GetPage returned distinct page objects")
	}
}

func TestBufferPoolEvictsCleanPages(t *testing.T) {
	_, hf, bp := makePagedFile(t, 2, 4)
	tid := NewTID()
	bp.BeginTransaction(tid)
	// Touch more pages than the pool holds; clean pages evict silently.
	for pageNo := 0; pageNo < 4; pageNo++ {
		if _, err := bp.GetPage(hf, pageNo, tid, ReadPerm); err != nil {
			t.Fatalf("GetPage %d: %v", pageNo, err)
		}
	}
	if len(bp.pages) > 2 {
		t.Errorf("pool holds %d pages, capacity 2", len(bp.pages))
	}
}

func TestBufferPoolFullOfDirtyPages(t *testing.T) {
	_, hf, bp := makePagedFile(t, 1, 2)
	tid := NewTID()
	bp.BeginTransaction(tid)
	p, err := bp.GetPage(hf, 0, tid, WritePerm)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	p.setDirty(tid, true)
	_, err = bp.GetPage(hf, 1, tid, ReadPerm)
	if dbErr, ok := err.(DbError); !ok || dbErr.Code() != BufferPoolFullError {
		t.Errorf("got %v, want BufferPoolFullError", err)
	}
}

func TestBufferPoolAbortDropsDirtyPages(t *testing.T) {
	_, hf, bp := makePagedFile(t, 5, 1)
	tid := NewTID()
	bp.BeginTransaction(tid)

	// Read a baseline count, mutate, then abort.
	p, err := bp.GetPage(hf, 0, tid, WritePerm)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	page := p.(*heapPage)
	before := page.getNumEmptySlots()
	victimIter := page.tupleIter()
	victim, _ := victimIter()
	if err := page.deleteTuple(victim.Rid); err != nil {
		t.Fatalf("deleteTuple: %v", err)
	}
	page.setDirty(tid, true)
	bp.AbortTransaction(tid)

	// A new transaction re-reads the page from disk, undoing the delete.
	tid2 := NewTID()
	bp.BeginTransaction(tid2)
	p2, err := bp.GetPage(hf, 0, tid2, ReadPerm)
	if err != nil {
		t.Fatalf("GetPage after abort: %v", err)
	}
	if got := p2.(*heapPage).getNumEmptySlots(); got != before {
		t.Errorf("aborted mutation leaked: %d empty slots, want %d", got, before)
	}
}

func TestBufferPoolCommitFlushes(t *testing.T) {
	td, hf, bp := makePagedFile(t, 5, 1)
	tid := NewTID()
	bp.BeginTransaction(tid)
	if err := hf.insertTuple(&Tuple{Desc: *td, Fields: []DBValue{IntField{-42}}}, tid); err != nil {
		t.Fatalf("insertTuple: %v", err)
	}
	bp.CommitTransaction(tid)

	// A second pool sees the committed row on disk.
	bp2, _ := NewBufferPool(5)
	hf2, _ := NewHeapFile(hf.BackingFile(), td, bp2)
	tid2 := NewTID()
	bp2.BeginTransaction(tid2)
	found := false
	for _, tup := range scanAll(t, hf2, tid2) {
		if tup.Fields[0] == (IntField{-42}) {
			found = true
		}
	}
	if !found {
		t.Errorf("committed tuple not on disk")
	}
}

func TestBufferPoolRequiresRunningTransaction(t *testing.T) {
	_, hf, bp := makePagedFile(t, 5, 1)
	_, err := bp.GetPage(hf, 0, NewTID(), ReadPerm)
	if err == nil {
		t.Errorf("GetPage without BeginTransaction should fail")
	}
}

func TestBufferPoolDeadlockAborts(t *testing.T) {
	_, hf, bp := makePagedFile(t, 5, 2)
	tidA := NewTID()
	tidB := NewTID()
	bp.BeginTransaction(tidA)
	bp.BeginTransaction(tidB)

	if _, err := bp.GetPage(hf, 0, tidA, WritePerm); err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if _, err := bp.GetPage(hf, 1, tidB, WritePerm); err != nil {
		t.Fatalf("GetPage: %v", err)
	}

	// A needs B's page while B needs A's: one of the two must abort.
	errs := make(chan error, 2)
	go func() {
		_, err := bp.GetPage(hf, 1, tidA, WritePerm)
		errs <- err
	}()
	go func() {
		_, err := bp.GetPage(hf, 0, tidB, WritePerm)
		errs <- err
	}()

	aborted := false
	for i := 0; i < 2; i++ {
		err := <-errs
		if dbErr, ok := err.(DbError); ok && dbErr.Code() == TransactionAbortedError {
			aborted = true
		}
	}
	if !aborted {
		t.Errorf("deadlock was not broken by an abort")
	}
}
