package heapdb

// heapPage is the page type used by HeapFile. Pages are PageSize bytes and
// hold fixed-width rows, so the slot count follows from the schema:
//
//	T = bytes per tuple
//	N = floor(PageSize * 8 / (T * 8 + 1))
//
// The page begins with a ceil(N/8)-byte header bitmap; bit k of header byte
// k/8, counting from the least significant bit, is 1 iff slot k holds a
// tuple. The header is followed by N slot regions of T bytes each, then
// zero padding up to PageSize. Unset slots serialize as T zero bytes.
//
// A tuple keeps the slot it was read from for as long as the page is in
// memory, so record ids stay valid across unrelated inserts and deletes.

import (
	"bytes"
	"fmt"
	"math/bits"
	"sync"
)

// HeapPageId identifies one page of one table.
type HeapPageId struct {
	TableID int
	PageNo  int
}

// RecordID locates a tuple within a table: the owning page and slot.
type RecordID struct {
	PageID HeapPageId
	SlotNo int
}

type heapPage struct {
	pid      HeapPageId
	desc     *TupleDesc
	numSlots int
	header   []byte
	tuples   []*Tuple
	file     *HeapFile

	dirty    bool
	dirtyTid TransactionID

	// oldData is the serialized image of the page's last stable state, used
	// by recovery collaborators. Only the reference swap is guarded; the
	// buffer itself is never mutated once published.
	oldData   []byte
	oldDataMu sync.Mutex
}

// tuplesPerPage computes the slot count and header width for a schema.
func tuplesPerPage(desc *TupleDesc) (numSlots int, headerBytes int, err error) {
	t := desc.bytesPerTuple()
	if t <= 0 {
		return 0, 0, DbError{TypeMismatchError, "descriptor has no serializable fields"}
	}
	numSlots = PageSize * 8 / (t*8 + 1)
	if numSlots == 0 {
		return 0, 0, DbError{PageFullError, fmt.Sprintf("tuple of %d bytes does not fit in a %d byte page", t, PageSize)}
	}
	headerBytes = (numSlots + 7) / 8
	return numSlots, headerBytes, nil
}

// newHeapPage constructs an empty page for the given schema.
func newHeapPage(desc *TupleDesc, pid HeapPageId, f *HeapFile) (*heapPage, error) {
	numSlots, headerBytes, err := tuplesPerPage(desc)
	if err != nil {
		return nil, err
	}
	p := &heapPage{
		pid:      pid,
		desc:     desc,
		numSlots: numSlots,
		header:   make([]byte, headerBytes),
		tuples:   make([]*Tuple, numSlots),
		file:     f,
	}
	if err := p.setBeforeImage(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *heapPage) slotIsUsed(slot int) bool {
	return p.header[slot/8]&(1<<(slot%8)) != 0
}

func (p *heapPage) setSlot(slot int, used bool) {
	if used {
		p.header[slot/8] |= 1 << (slot % 8)
	} else {
		p.header[slot/8] &^= 1 << (slot % 8)
	}
}

func (p *heapPage) getNumSlots() int {
	return p.numSlots
}

func (p *heapPage) getNumEmptySlots() int {
	used := 0
	for _, b := range p.header {
		used += bits.OnesCount8(b)
	}
	return p.numSlots - used
}

// insertTuple stores t in the lowest-numbered empty slot, sets the slot bit,
// and assigns t's record id. Fails with TypeMismatchError if t's schema does
// not match the page, and PageFullError if every slot is used.
func (p *heapPage) insertTuple(t *Tuple) (recordID, error) {
	if !t.Desc.equals(p.desc) {
		return nil, DbError{TypeMismatchError, "tuple descriptor does not match page descriptor"}
	}
	for slot := 0; slot < p.numSlots; slot++ {
		if p.slotIsUsed(slot) {
			continue
		}
		rid := RecordID{PageID: p.pid, SlotNo: slot}
		stored := &Tuple{Desc: *p.desc.copy(), Fields: t.Fields, Rid: rid}
		p.tuples[slot] = stored
		p.setSlot(slot, true)
		t.Rid = rid
		return rid, nil
	}
	return nil, DbError{PageFullError, fmt.Sprintf("no free slots on page %d of table %d", p.pid.PageNo, p.pid.TableID)}
}

// deleteTuple clears the slot named by rid. Fails with TupleNotFoundError
// if rid does not name a slot of this page and SlotEmptyError if the slot
// bit is already clear.
func (p *heapPage) deleteTuple(rid recordID) error {
	r, ok := rid.(RecordID)
	if !ok {
		return DbError{TupleNotFoundError, fmt.Sprintf("unrecognized record id %v", rid)}
	}
	if r.PageID != p.pid {
		return DbError{TupleNotFoundError, fmt.Sprintf("record id names page %v, not %v", r.PageID, p.pid)}
	}
	if r.SlotNo < 0 || r.SlotNo >= p.numSlots {
		return DbError{TupleNotFoundError, fmt.Sprintf("slot %d out of range", r.SlotNo)}
	}
	if !p.slotIsUsed(r.SlotNo) {
		return DbError{SlotEmptyError, fmt.Sprintf("slot %d is already empty", r.SlotNo)}
	}
	p.setSlot(r.SlotNo, false)
	p.tuples[r.SlotNo] = nil
	return nil
}

// Page method - return whether or not the page is dirty.
func (p *heapPage) isDirty() bool {
	return p.dirty
}

// Page method - mark the page as dirty on behalf of tid. Clearing the flag
// also clears the dirtying transaction.
func (p *heapPage) setDirty(tid TransactionID, dirty bool) {
	p.dirty = dirty
	if dirty {
		p.dirtyTid = tid
	} else {
		p.dirtyTid = invalidTid
	}
}

// dirtier returns the transaction that dirtied the page, if any.
func (p *heapPage) dirtier() (TransactionID, bool) {
	return p.dirtyTid, p.dirty
}

// Page method - return the corresponding HeapFile for this page.
func (p *heapPage) getFile() DBFile {
	return p.file
}

// toBuffer serializes the page: the header bitmap, then each slot region
// (the tuple's fields in descriptor order, or T zero bytes for an empty
// slot), then padding to exactly PageSize bytes.
func (p *heapPage) toBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	buf.Grow(PageSize)
	if _, err := buf.Write(p.header); err != nil {
		return nil, err
	}
	emptySlot := make([]byte, p.desc.bytesPerTuple())
	for slot := 0; slot < p.numSlots; slot++ {
		if p.slotIsUsed(slot) {
			if err := p.tuples[slot].writeTo(buf); err != nil {
				return nil, err
			}
		} else {
			if _, err := buf.Write(emptySlot); err != nil {
				return nil, err
			}
		}
	}
	if buf.Len() > PageSize {
		return nil, DbError{MalformedDataError, fmt.Sprintf("page serialized to %d bytes, want %d", buf.Len(), PageSize)}
	}
	buf.Write(make([]byte, PageSize-buf.Len()))
	return buf, nil
}

// initFromBuffer reads the page contents from a PageSize byte image. Slot
// regions whose header bit is clear are skipped without parsing. The before
// image is seeded with the current serialized form.
func (p *heapPage) initFromBuffer(buf *bytes.Buffer) error {
	data := buf.Bytes()
	if len(data) < PageSize {
		return DbError{MalformedDataError, fmt.Sprintf("page image is %d bytes, want %d", len(data), PageSize)}
	}
	numSlots, headerBytes, err := tuplesPerPage(p.desc)
	if err != nil {
		return err
	}
	p.numSlots = numSlots
	p.header = make([]byte, headerBytes)
	copy(p.header, data[:headerBytes])
	p.tuples = make([]*Tuple, numSlots)

	t := p.desc.bytesPerTuple()
	for slot := 0; slot < numSlots; slot++ {
		if !p.slotIsUsed(slot) {
			continue
		}
		region := data[headerBytes+slot*t : headerBytes+(slot+1)*t]
		tup, err := readTupleFrom(bytes.NewBuffer(region), p.desc)
		if err != nil {
			return err
		}
		tup.Rid = RecordID{PageID: p.pid, SlotNo: slot}
		p.tuples[slot] = tup
	}
	return p.setBeforeImage()
}

// getBeforeImage reconstructs a page from the last stable snapshot.
func (p *heapPage) getBeforeImage() (*heapPage, error) {
	p.oldDataMu.Lock()
	data := p.oldData
	p.oldDataMu.Unlock()

	old := &heapPage{pid: p.pid, desc: p.desc, file: p.file}
	if err := old.initFromBuffer(bytes.NewBuffer(data)); err != nil {
		return nil, err
	}
	return old, nil
}

// setBeforeImage replaces the snapshot with the current serialized form.
func (p *heapPage) setBeforeImage() error {
	buf, err := p.toBuffer()
	if err != nil {
		return err
	}
	p.oldDataMu.Lock()
	p.oldData = buf.Bytes()
	p.oldDataMu.Unlock()
	return nil
}

// tupleIter returns a function iterating the populated tuples in slot
// order. The populated slots are snapshotted at creation, so the iterator
// is unaffected by later mutation of this or other pages; obtain a fresh
// iterator to observe changes.
func (p *heapPage) tupleIter() func() (*Tuple, error) {
	snapshot := make([]*Tuple, 0, p.numSlots-p.getNumEmptySlots())
	for slot := 0; slot < p.numSlots; slot++ {
		if p.slotIsUsed(slot) {
			snapshot = append(snapshot, p.tuples[slot])
		}
	}
	i := 0
	return func() (*Tuple, error) {
		if i >= len(snapshot) {
			return nil, nil
		}
		res := snapshot[i]
		i++
		return res, nil
	}
}
