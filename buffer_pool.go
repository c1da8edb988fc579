package heapdb

// BufferPool caches pages read from disk and is the coordination point for
// transactions: page-level read/write locks with waits-for deadlock
// detection, and FORCE/NO-STEAL page lifetime (dirty pages are flushed at
// commit and never evicted, so aborting only has to drop them).
//
// Clean pages are evictable; their recency order is kept in an LRU so a
// full pool drops the least recently touched clean page. If every cached
// page is dirty the fetch fails with BufferPoolFullError.

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// RWPerm is the intent with which a transaction acquires a page.
type RWPerm int

const (
	ReadPerm RWPerm = iota
	WritePerm
)

type BufferPool struct {
	numPages int

	mu          sync.Mutex
	pages       map[any]Page
	cleanOrder  *lru.Cache // recency order of evictable pages; values unused
	lastEvicted any

	active     map[TransactionID]struct{}
	readLocks  map[TransactionID]map[any]struct{}
	writeLocks map[TransactionID]map[any]struct{}
	waitsFor   map[TransactionID]map[TransactionID]struct{}
}

// NewBufferPool creates a pool holding at most numPages pages.
func NewBufferPool(numPages int) (*BufferPool, error) {
	if numPages <= 0 {
		return nil, DbError{IllegalOperationError, fmt.Sprintf("buffer pool size %d is not positive", numPages)}
	}
	bp := &BufferPool{
		numPages:   numPages,
		pages:      make(map[any]Page),
		active:     make(map[TransactionID]struct{}),
		readLocks:  make(map[TransactionID]map[any]struct{}),
		writeLocks: make(map[TransactionID]map[any]struct{}),
		waitsFor:   make(map[TransactionID]map[TransactionID]struct{}),
	}
	bp.cleanOrder = lru.New(0)
	bp.cleanOrder.OnEvicted = func(key lru.Key, value interface{}) {
		bp.lastEvicted = key
	}
	return bp, nil
}

// BeginTransaction registers tid with the pool. Fails if tid is already
// running.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if _, running := bp.active[tid]; running {
		return DbError{IllegalOperationError, fmt.Sprintf("transaction %d is already running", tid)}
	}
	bp.active[tid] = struct{}{}
	bp.readLocks[tid] = make(map[any]struct{})
	bp.writeLocks[tid] = make(map[any]struct{})
	bp.waitsFor[tid] = make(map[TransactionID]struct{})
	return nil
}

// CommitTransaction flushes the pages tid has dirtied and releases its
// locks. FORCE: after commit the disk holds every mutation.
func (bp *BufferPool) CommitTransaction(tid TransactionID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for key := range bp.writeLocks[tid] {
		page, found := bp.pages[key]
		if !found || !page.isDirty() {
			continue
		}
		if err := page.getFile().flushPage(page); err != nil {
			DPrintf("commit of %d: flush of %v failed: %v", tid, key, err)
			continue
		}
		if hp, ok := page.(*heapPage); ok {
			hp.setBeforeImage()
		}
		bp.cleanOrder.Add(key, nil)
	}
	bp.releaseLocks(tid)
}

// AbortTransaction drops the cached pages tid has dirtied and releases its
// locks. NO-STEAL: none of those pages reached disk, so dropping the cached
// copies is a complete rollback.
func (bp *BufferPool) AbortTransaction(tid TransactionID) {
	bp.mu.Lock()
	if _, running := bp.active[tid]; !running {
		bp.mu.Unlock()
		return
	}
	for key := range bp.writeLocks[tid] {
		if page, found := bp.pages[key]; found && page.isDirty() {
			delete(bp.pages, key)
			bp.cleanOrder.Remove(key)
		}
	}
	bp.releaseLocks(tid)
	bp.mu.Unlock()
	// Give waiters blocked on this transaction's locks a chance to run.
	time.Sleep(1 * time.Millisecond)
}

func (bp *BufferPool) releaseLocks(tid TransactionID) {
	delete(bp.readLocks, tid)
	delete(bp.writeLocks, tid)
	delete(bp.waitsFor, tid)
	delete(bp.active, tid)
	for _, deps := range bp.waitsFor {
		delete(deps, tid)
	}
}

// FlushAllPages writes every dirty cached page to disk. Testing method; not
// transaction safe.
func (bp *BufferPool) FlushAllPages() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for key, page := range bp.pages {
		if !page.isDirty() {
			continue
		}
		if err := page.getFile().flushPage(page); err != nil {
			DPrintf("FlushAllPages: flush of %v failed: %v", key, err)
			continue
		}
		bp.cleanOrder.Add(key, nil)
	}
}

// GetPage retrieves page pageNumber of file on behalf of tid with the
// requested permission, reading it from disk on a cache miss. Blocks while
// a conflicting transaction holds the page; if the waits-for graph shows a
// deadlock the requesting transaction is aborted and the call fails with
// TransactionAbortedError. Idempotent within a transaction.
func (bp *BufferPool) GetPage(file DBFile, pageNumber int, tid TransactionID, perm RWPerm) (Page, error) {
	key := file.pageKey(pageNumber)

	bp.mu.Lock()
	if _, running := bp.active[tid]; !running {
		bp.mu.Unlock()
		return nil, DbError{IllegalOperationError, fmt.Sprintf("transaction %d is not running", tid)}
	}
	bp.mu.Unlock()

	for {
		bp.mu.Lock()
		if !bp.conflicts(tid, key, perm) {
			break
		}
		if bp.hasCycle() {
			bp.mu.Unlock()
			bp.AbortTransaction(tid)
			return nil, DbError{TransactionAbortedError, fmt.Sprintf("transaction %d aborted to break a deadlock", tid)}
		}
		bp.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	defer bp.mu.Unlock()

	switch perm {
	case ReadPerm:
		bp.readLocks[tid][key] = struct{}{}
	case WritePerm:
		bp.writeLocks[tid][key] = struct{}{}
	}

	if page, cached := bp.pages[key]; cached {
		if !page.isDirty() {
			bp.cleanOrder.Get(key)
		}
		return page, nil
	}

	if len(bp.pages) >= bp.numPages {
		if err := bp.evictPage(); err != nil {
			return nil, err
		}
	}
	page, err := file.readPage(pageNumber)
	if err != nil {
		return nil, err
	}
	bp.pages[key] = page
	bp.cleanOrder.Add(key, nil)
	return page, nil
}

// evictPage drops the least recently used clean page. Pages found dirty are
// pulled out of the recency order and pinned until their transaction
// resolves. Caller holds bp.mu.
func (bp *BufferPool) evictPage() error {
	for bp.cleanOrder.Len() > 0 {
		bp.lastEvicted = nil
		bp.cleanOrder.RemoveOldest()
		key := bp.lastEvicted
		if key == nil {
			break
		}
		page, found := bp.pages[key]
		if !found {
			continue
		}
		if page.isDirty() {
			continue
		}
		delete(bp.pages, key)
		return nil
	}
	return DbError{BufferPoolFullError, "buffer pool is full of dirty pages"}
}

// conflicts reports whether another transaction holds key in a mode
// incompatible with perm, recording the dependency in the waits-for graph.
// Caller holds bp.mu.
func (bp *BufferPool) conflicts(tid TransactionID, key any, perm RWPerm) bool {
	conflict := false
	for other := range bp.active {
		if other == tid {
			continue
		}
		if perm == ReadPerm {
			conflict = bp.addDependencyIfLocked(other, tid, key, bp.writeLocks)
		} else {
			conflict = bp.addDependencyIfLocked(other, tid, key, bp.readLocks) ||
				bp.addDependencyIfLocked(other, tid, key, bp.writeLocks)
		}
		if conflict {
			break
		}
	}
	return conflict
}

func (bp *BufferPool) addDependencyIfLocked(other, tid TransactionID, key any, locks map[TransactionID]map[any]struct{}) bool {
	if _, locked := locks[other][key]; locked {
		bp.waitsFor[tid][other] = struct{}{}
		return true
	}
	return false
}

// hasCycle runs a DFS over the waits-for graph. Caller holds bp.mu.
func (bp *BufferPool) hasCycle() bool {
	onStack := make(map[TransactionID]bool)
	visited := make(map[TransactionID]bool)

	var dfs func(tid TransactionID) bool
	dfs = func(tid TransactionID) bool {
		onStack[tid] = true
		visited[tid] = true
		for next := range bp.waitsFor[tid] {
			if !visited[next] {
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				return true
			}
		}
		onStack[tid] = false
		return false
	}

	for tid := range bp.active {
		if !visited[tid] && dfs(tid) {
			return true
		}
	}
	return false
}
