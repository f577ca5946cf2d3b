package pool

// Refptr is a light reference: an owned increment on some content
// block's refcount, held without consuming a pool slot of its own.
// It is the cheap way to keep a block alive across a function call;
// MakeBlockRef (below) is the more expensive, list-linkable way.
type Refptr struct {
	target *Block
}

// Block returns the block rp refers to.
func (rp *Refptr) Block() *Block { return rp.target }

// MakeDynamicObject wraps blk (which must be a content block) in a
// new Refptr, incrementing its refcount. This is how a freshly
// allocated primary/canonical/flow block is normally handed off: the
// allocator returns the bare *Block, and the first thing the caller
// does is wrap it so it survives past the next Maintain call.
func (p *Pool) MakeDynamicObject(blk *Block) *Refptr {
	if !blk.tag.IsContentTag() {
		panic("pool: MakeDynamicObject requires a content block")
	}
	unlock := p.lock.Locked()
	defer unlock()
	return p.makeDynamicLocked(blk)
}

func (p *Pool) makeDynamicLocked(blk *Block) *Refptr {
	blk.refcount++
	return &Refptr{target: blk}
}

// DuplicateLightReference returns a new Refptr to rp's target,
// incrementing its refcount again. The two Refptrs are independent
// and must each be released.
func (p *Pool) DuplicateLightReference(rp *Refptr) *Refptr {
	unlock := p.lock.Locked()
	defer unlock()
	return p.makeDynamicLocked(rp.target)
}

// ReleaseLightReference drops rp's hold on its target. If this was
// the last reference, the target is queued for recycling (drained by
// the next Maintain call).
func (p *Pool) ReleaseLightReference(rp *Refptr) {
	unlock := p.lock.Locked()
	defer unlock()
	p.releaseContentLocked(rp.target)
}

func (p *Pool) releaseContentLocked(target *Block) {
	if target.refcount <= 0 {
		panic("pool: release of block with non-positive refcount")
	}
	target.refcount--
	if target.refcount == 0 {
		p.recycleLocked(target)
	}
}

// MakeBlockRef allocates a new TagRef block pointing at target
// (incrementing target's refcount) and carrying notify, to be called
// with arg available via the returned block's NotifyArg once the
// reference itself is recycled. Unlike a Refptr, the returned block
// can be linked into a list (a SubQueue, most commonly).
func (p *Pool) MakeBlockRef(target *Block, notify NotifyFunc, arg interface{}) (*Block, error) {
	if !target.tag.IsContentTag() {
		panic("pool: MakeBlockRef requires a content block target")
	}
	unlock := p.lock.Locked()
	defer unlock()

	ref, err := p.obtainFreeBlockLocked("MakeBlockRef")
	if err != nil {
		return nil, err
	}
	ref.tag = TagRef
	ref.refTarget = target
	ref.notify = notify
	ref.notifyArg = arg
	target.refcount++
	return ref, nil
}

// DuplicateBlockReference allocates a second TagRef block pointing at
// the same target as ref, with the same notify/arg.
func (p *Pool) DuplicateBlockReference(ref *Block) (*Block, error) {
	if ref.tag != TagRef {
		panic("pool: DuplicateBlockReference requires a TagRef block")
	}
	return p.MakeBlockRef(ref.refTarget, ref.notify, ref.notifyArg)
}

// NotifyArg returns the opaque argument a TagRef block was created
// with, for use inside its NotifyFunc.
func (b *Block) NotifyArg() interface{} { return b.notifyArg }

// RefTarget returns the block a TagRef block points at.
func (b *Block) RefTarget() *Block { return b.refTarget }
