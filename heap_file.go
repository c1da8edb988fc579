package heapdb

// A HeapFile is an unordered collection of tuples stored as a sequence of
// tightly packed PageSize byte page images in a single backing file; page i
// lives at byte offset i*PageSize. All page access on the read and write
// paths goes through the buffer pool except the page append during insert,
// which is serialized by a per-file mutex.

import (
	"bufio"
	"bytes"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

type HeapFile struct {
	backingFile string
	td          *TupleDesc
	bufPool     *BufferPool
	tableID     int
	appendMu    sync.Mutex
}

// NewHeapFile creates a HeapFile over fromFile, which may be empty or a
// previously created heap file. The table id is a stable hash of the
// file's absolute path, identical across process runs for the same path;
// the catalog is responsible for refusing collisions.
func NewHeapFile(fromFile string, td *TupleDesc, bp *BufferPool) (*HeapFile, error) {
	abs, err := filepath.Abs(fromFile)
	if err != nil {
		return nil, DbError{IOError, fmt.Sprintf("cannot resolve path %s: %v", fromFile, err)}
	}
	h := fnv.New32a()
	h.Write([]byte(abs))
	return &HeapFile{
		backingFile: fromFile,
		td:          td,
		bufPool:     bp,
		tableID:     int(h.Sum32()),
	}, nil
}

// BackingFile returns the name of the backing file.
func (f *HeapFile) BackingFile() string {
	return f.backingFile
}

// TableID returns the stable id of the table this file backs.
func (f *HeapFile) TableID() int {
	return f.tableID
}

// NumPages returns the number of whole pages in the heap file.
func (f *HeapFile) NumPages() int {
	fi, err := os.Stat(f.backingFile)
	if err != nil {
		return 0
	}
	return int(fi.Size() / int64(PageSize))
}

// Descriptor returns the TupleDesc supplied at construction.
func (f *HeapFile) Descriptor() *TupleDesc {
	return f.td
}

// readPage reads page pageNo from disk and decodes it. Called by
// BufferPool.GetPage on a cache miss; fails with IOError if the page lies
// beyond the end of the file or the read comes up short.
func (f *HeapFile) readPage(pageNo int) (Page, error) {
	if pageNo < 0 || pageNo >= f.NumPages() {
		return nil, DbError{IOError, fmt.Sprintf("page %d out of range, file %s has %d pages", pageNo, f.backingFile, f.NumPages())}
	}
	file, err := os.Open(f.backingFile)
	if err != nil {
		return nil, DbError{IOError, fmt.Sprintf("cannot open %s: %v", f.backingFile, err)}
	}
	defer file.Close()

	data := make([]byte, PageSize)
	n, err := file.ReadAt(data, int64(pageNo)*int64(PageSize))
	if err != nil && err != io.EOF {
		return nil, DbError{IOError, fmt.Sprintf("read of page %d from %s failed: %v", pageNo, f.backingFile, err)}
	}
	if n != PageSize {
		return nil, DbError{IOError, fmt.Sprintf("short read of page %d from %s: %d bytes", pageNo, f.backingFile, n)}
	}

	p := &heapPage{pid: HeapPageId{TableID: f.tableID, PageNo: pageNo}, desc: f.td, file: f}
	if err := p.initFromBuffer(bytes.NewBuffer(data)); err != nil {
		return nil, err
	}
	return p, nil
}

// flushPage writes the page's serialized image back to its slot in the
// backing file. Writing at pageNo == NumPages appends.
func (f *HeapFile) flushPage(p Page) error {
	page, ok := p.(*heapPage)
	if !ok {
		return DbError{TypeMismatchError, fmt.Sprintf("cannot flush page of type %T", p)}
	}
	buf, err := page.toBuffer()
	if err != nil {
		return err
	}
	file, err := os.OpenFile(f.backingFile, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return DbError{IOError, fmt.Sprintf("cannot open %s: %v", f.backingFile, err)}
	}
	defer file.Close()

	if _, err := file.WriteAt(buf.Bytes(), int64(page.pid.PageNo)*int64(PageSize)); err != nil {
		return DbError{IOError, fmt.Sprintf("write of page %d to %s failed: %v", page.pid.PageNo, f.backingFile, err)}
	}
	page.setDirty(invalidTid, false)
	return nil
}

// insertTuple adds t to the file, walking pages through the buffer pool
// with write intent and inserting into the first page with a free slot.
// If every page is full a fresh empty page is appended to disk first and
// the insert retried through the pool. Exactly one page is mutated and
// marked dirty with tid.
func (f *HeapFile) insertTuple(t *Tuple, tid TransactionID) error {
	for pageNo := 0; pageNo < f.NumPages(); pageNo++ {
		p, err := f.bufPool.GetPage(f, pageNo, tid, WritePerm)
		if err != nil {
			return err
		}
		page := p.(*heapPage)
		if page.getNumEmptySlots() == 0 {
			continue
		}
		if _, err := page.insertTuple(t); err != nil {
			return err
		}
		page.setDirty(tid, true)
		return nil
	}

	pageNo, err := f.appendEmptyPage()
	if err != nil {
		return err
	}
	p, err := f.bufPool.GetPage(f, pageNo, tid, WritePerm)
	if err != nil {
		return err
	}
	page := p.(*heapPage)
	if _, err := page.insertTuple(t); err != nil {
		return err
	}
	page.setDirty(tid, true)
	return nil
}

// appendEmptyPage writes a fresh empty page at index NumPages and returns
// that index. The append is serialized so concurrent inserts cannot clobber
// each other's new page.
func (f *HeapFile) appendEmptyPage() (int, error) {
	f.appendMu.Lock()
	defer f.appendMu.Unlock()
	pageNo := f.NumPages()
	page, err := newHeapPage(f.td, HeapPageId{TableID: f.tableID, PageNo: pageNo}, f)
	if err != nil {
		return 0, err
	}
	if err := f.flushPage(page); err != nil {
		return 0, err
	}
	return pageNo, nil
}

// deleteTuple removes t, located by its record id, fetching the owning page
// with write intent and marking it dirty.
func (f *HeapFile) deleteTuple(t *Tuple, tid TransactionID) error {
	if t.Rid == nil {
		return DbError{TupleNotFoundError, "tuple has no record id"}
	}
	rid, ok := t.Rid.(RecordID)
	if !ok {
		return DbError{TupleNotFoundError, fmt.Sprintf("unrecognized record id %v", t.Rid)}
	}
	if rid.PageID.TableID != f.tableID {
		return DbError{TupleNotFoundError, fmt.Sprintf("record id names table %d, not %d", rid.PageID.TableID, f.tableID)}
	}
	p, err := f.bufPool.GetPage(f, rid.PageID.PageNo, tid, WritePerm)
	if err != nil {
		return err
	}
	page := p.(*heapPage)
	if err := page.deleteTuple(rid); err != nil {
		return err
	}
	page.setDirty(tid, true)
	return nil
}

// pageKey returns a map key uniquely identifying page pgNo of this file,
// used by the buffer pool.
type heapHash struct {
	FileName string
	PageNo   int
}

func (f *HeapFile) pageKey(pgNo int) any {
	return heapHash{FileName: f.backingFile, PageNo: pgNo}
}

// Iterator returns a scan over the records of the heap file on behalf of
// tid. Pages are fetched through the buffer pool with read intent. The
// page count is captured at Open, so growth of the file between Open and
// exhaustion is not observed; Rewind re-captures it.
func (f *HeapFile) Iterator(tid TransactionID) (TupleIterator, error) {
	return &heapFileIterator{f: f, tid: tid}, nil
}

type heapFileIterator struct {
	f   *HeapFile
	tid TransactionID

	opened   bool
	numPages int
	pageNo   int
	pageIter func() (*Tuple, error)
	next     *Tuple
}

func (it *heapFileIterator) Open() error {
	if it.opened {
		return DbError{IllegalStateError, "heap file iterator is already open"}
	}
	it.numPages = it.f.NumPages()
	it.pageNo = 0
	it.pageIter = nil
	it.next = nil
	if it.numPages > 0 {
		p, err := it.f.bufPool.GetPage(it.f, 0, it.tid, ReadPerm)
		if err != nil {
			return err
		}
		it.pageIter = p.(*heapPage).tupleIter()
	}
	it.opened = true
	return nil
}

func (it *heapFileIterator) HasNext() (bool, error) {
	if !it.opened {
		return false, DbError{IllegalStateError, "heap file iterator is not open"}
	}
	if it.next != nil {
		return true, nil
	}
	for {
		if it.pageIter == nil {
			if it.pageNo >= it.numPages {
				return false, nil
			}
			p, err := it.f.bufPool.GetPage(it.f, it.pageNo, it.tid, ReadPerm)
			if err != nil {
				return false, err
			}
			it.pageIter = p.(*heapPage).tupleIter()
		}
		t, err := it.pageIter()
		if err != nil {
			return false, err
		}
		if t != nil {
			it.next = t
			return true, nil
		}
		it.pageIter = nil
		it.pageNo++
	}
}

func (it *heapFileIterator) Next() (*Tuple, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, DbError{NoMoreTuplesError, "heap file iterator is exhausted"}
	}
	t := it.next
	it.next = nil
	return t, nil
}

func (it *heapFileIterator) Rewind() error {
	if err := it.Close(); err != nil {
		return err
	}
	return it.Open()
}

func (it *heapFileIterator) Close() error {
	it.opened = false
	it.pageIter = nil
	it.next = nil
	return nil
}

// LoadFromCSV loads the contents of the heap file from a CSV file.
// Parameters:
//   - hasHeader: whether the first line is a header to skip
//   - sep: the field separator
//   - skipLastField: if true, the final field of each line is dropped (some
//     TPC datasets carry a trailing separator)
//
// Each row is inserted under its own transaction. Returns an error if a
// line is malformed.
func (f *HeapFile) LoadFromCSV(file *os.File, hasHeader bool, sep string, skipLastField bool) error {
	scanner := bufio.NewScanner(file)
	cnt := 0
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Split(line, sep)
		if skipLastField {
			fields = fields[0 : len(fields)-1]
		}
		numFields := len(fields)
		cnt++
		desc := f.Descriptor()
		if desc == nil || desc.Fields == nil {
			return DbError{MalformedDataError, "descriptor was nil"}
		}
		if numFields != len(desc.Fields) {
			return DbError{MalformedDataError, fmt.Sprintf("LoadFromCSV: line %d (%s) does not have expected number of fields (expected %d, got %d)", cnt, line, len(desc.Fields), numFields)}
		}
		if cnt == 1 && hasHeader {
			continue
		}
		var newFields []DBValue
		for fno, field := range fields {
			switch desc.Fields[fno].Ftype {
			case IntType:
				field = strings.TrimSpace(field)
				floatVal, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return DbError{TypeMismatchError, fmt.Sprintf("LoadFromCSV: couldn't convert value %s to int, tuple %d", field, cnt)}
				}
				newFields = append(newFields, IntField{int32(floatVal)})
			case StringType:
				if len(field) > StringLength {
					field = field[0:StringLength]
				}
				newFields = append(newFields, StringField{field})
			}
		}
		newT := Tuple{Desc: *desc, Fields: newFields}
		tid := NewTID()
		bp := f.bufPool
		if err := bp.BeginTransaction(tid); err != nil {
			return err
		}
		if err := f.insertTuple(&newT, tid); err != nil {
			bp.AbortTransaction(tid)
			return err
		}
		bp.CommitTransaction(tid)
	}
	return nil
}
