package pool

import "github.com/dtn-go/bpcore/mlog"

// RecycleBlock moves blk onto the pool's deferred recycle list. It
// does not run blk's notify callback or actually return its slot to
// the free list; that happens the next time Maintain runs. Deferring
// this work is what lets a notify callback recycle further blocks
// without recursing through arbitrarily many stack frames inside
// whatever call first triggered the drop.
func (p *Pool) RecycleBlock(blk *Block) {
	unlock := p.lock.Locked()
	defer unlock()
	p.recycleLocked(blk)
}

func (p *Pool) recycleLocked(blk *Block) {
	ExtractNode(blk)
	InsertBefore(&p.recycle, blk)
}

// RecycleAllInList moves every member of head onto the pool's
// deferred recycle list, leaving head empty.
func (p *Pool) RecycleAllInList(head *Block) {
	unlock := p.lock.Locked()
	defer unlock()
	ForEachInList(head, true, func(m *Block) bool {
		p.recycleLocked(m)
		return true
	})
}

// drainRecycleLocked finalizes every block currently on the recycle
// list, including any further blocks that finalization itself queues
// (e.g. a TagRef block's target hitting a zero refcount). Caller must
// hold p.lock.
func (p *Pool) drainRecycleLocked() {
	for !IsEmptyHead(&p.recycle) {
		blk := p.recycle.next
		ExtractNode(blk)
		p.finalizeLocked(blk)
	}
}

// finalizeLocked tears down blk's content (cascading into anything it
// owned) and returns its slot to the free list. Any notify callback is
// queued onto p.pendingNotify rather than called here, since this runs
// with p.lock held.
func (p *Pool) finalizeLocked(blk *Block) {
	switch blk.tag {
	case TagRef:
		target := blk.refTarget
		if blk.notify != nil {
			cb, ref := blk.notify, blk
			p.pendingNotify = append(p.pendingNotify, func() { cb(ref) })
		}
		blk.refTarget = nil
		if target != nil {
			p.releaseContentLocked(target)
		}
	case TagPrimary:
		p.finalizeMembersLocked(&blk.primary.Canonicals)
		p.finalizeMembersLocked(&blk.primary.Chunks)
		ExtractNode(&blk.primary.RetxLink)
	case TagCanonical:
		p.finalizeMembersLocked(&blk.canonical.Chunks)
	case TagFlow:
		p.finalizeMembersLocked(&blk.flow.Input.Blocks)
		p.finalizeMembersLocked(&blk.flow.Output.Blocks)
		ExtractNode(&blk.flow.ActiveLink)
	}
	p.returnToFreeLocked(blk)
}

func (p *Pool) finalizeMembersLocked(head *Block) {
	ForEachInList(head, true, func(m *Block) bool {
		p.finalizeLocked(m)
		return true
	})
}

// Maintain drains the recycle list, returning every finalized slot to
// the free list, then runs the notify callbacks that finalization
// queued, outside the pool lock. Call it periodically (e.g. once per
// event loop iteration) rather than after every single drop.
func (p *Pool) Maintain() {
	var notifications []func()
	func() {
		unlock := p.lock.Locked()
		defer unlock()
		p.drainRecycleLocked()
		notifications = p.pendingNotify
		p.pendingNotify = nil
	}()

	if len(notifications) > 0 {
		mlog.Printf2(mlogTag, "pool.Maintain running %d notify callbacks", len(notifications))
	}
	for _, cb := range notifications {
		cb()
	}
}
