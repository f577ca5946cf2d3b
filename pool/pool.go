package pool

import (
	"github.com/dtn-go/bpcore/mlog"
	"github.com/dtn-go/bpcore/util"
)

const mlogTag = "pool"

// Pool is a fixed-capacity arena of Block slots plus the bookkeeping
// lists spec.md describes: a free list of unused slots, a recycle
// list of blocks waiting to be drained back to free by Maintain, and
// the active-flows list the scheduler surface walks.
//
// All list and refcount mutation goes through Pool's single lock, per
// spec.md §5 — there is deliberately no per-block or per-list lock.
type Pool struct {
	lock util.MutexLocked

	arena []Block

	free            Block
	recycle         Block
	activeFlows     Block
	retransmitOrder Block

	capacity  int
	allocated int

	pendingNotify []func()
}

// Create allocates a Pool with room for capacity blocks. capacity
// must be positive; anything else is a caller configuration mistake
// reported as an error rather than a panic, since it is a boundary
// input rather than an internal invariant violation.
func Create(capacity int) (*Pool, error) {
	if capacity <= 0 {
		return nil, newError("Create", KindInvalidArena, nil)
	}

	p := &Pool{
		arena:    make([]Block, capacity),
		capacity: capacity,
	}
	InitHead(&p.free)
	InitHead(&p.recycle)
	InitHead(&p.activeFlows)
	InitHead(&p.retransmitOrder)

	for i := range p.arena {
		blk := &p.arena[i]
		blk.pool = p
		blk.tag = TagUndefined
		blk.next = blk
		blk.prev = blk
		InsertBefore(&p.free, blk)
	}

	mlog.Printf2(mlogTag, "pool.Create capacity=%d", capacity)
	return p, nil
}

// Capacity returns the total number of slots the pool was created
// with.
func (p *Pool) Capacity() int { return p.capacity }

// Allocated returns the number of slots not on the free list: those
// in use plus those recycled but not yet drained back by Maintain.
func (p *Pool) Allocated() int {
	unlock := p.lock.Locked()
	defer unlock()
	return p.allocated
}

// obtainFreeBlockLocked pops one block off the free list. Caller must
// hold p.lock. Returns a pool_exhausted error if the free list (and,
// after draining, the recycle list) is empty.
func (p *Pool) obtainFreeBlockLocked(op string) (*Block, error) {
	if IsEmptyHead(&p.free) {
		p.drainRecycleLocked()
	}
	if IsEmptyHead(&p.free) {
		return nil, newError(op, KindExhausted, nil)
	}
	blk := p.free.next
	ExtractNode(blk)
	p.resetBlock(blk)
	p.allocated++
	return blk, nil
}

// resetBlock clears every variant field so a reused slot never leaks
// stale state from its previous life into a new allocation.
func (p *Pool) resetBlock(blk *Block) {
	pool := blk.pool
	*blk = Block{}
	blk.pool = pool
	blk.next = blk
	blk.prev = blk
}

// returnToFreeLocked puts blk back on the free list. Caller must hold
// p.lock and must have already released any resources blk held
// (target refcounts, notify callbacks already fired).
func (p *Pool) returnToFreeLocked(blk *Block) {
	ExtractNode(blk)
	blk.tag = TagUndefined
	InsertBefore(&p.free, blk)
	if p.allocated > 0 {
		p.allocated--
	}
}
