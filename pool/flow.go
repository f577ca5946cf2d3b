package pool

// SubQueueStats is a point-in-time snapshot of a SubQueue's counters,
// safe to read without holding the pool's lock because it is a value
// copy taken while the lock was held. Grounded in the teacher's
// Storage read/write/readbytes/writebytes counters
// (storage/storage.go), which are read by callers in exactly this
// snapshot style.
type SubQueueStats struct {
	PushCount  int64
	PopCount   int64
	DropCount  int64
	HighWater  int
	DepthLimit int
}

// SubQueue is a bounded FIFO of block references (TagRef blocks),
// used as both halves of a Flow (input and output) and as the queue
// backing a bundle store-and-forward stage.
type SubQueue struct {
	Blocks Block // list head

	depthLimit int
	pushCount  int64
	popCount   int64
	dropCount  int64
	highWater  int
}

// InitSubQueue initializes an empty SubQueue with the given depth
// limit. A depthLimit of 0 means unbounded.
func InitSubQueue(q *SubQueue, depthLimit int) {
	InitHead(&q.Blocks)
	q.depthLimit = depthLimit
}

// Stats takes a snapshot of q's counters. Callers normally reach this
// via Pool.SubQueueStats, which takes the pool lock first.
func (q *SubQueue) Stats() SubQueueStats {
	return SubQueueStats{
		PushCount:  q.pushCount,
		PopCount:   q.popCount,
		DropCount:  q.dropCount,
		HighWater:  q.highWater,
		DepthLimit: q.depthLimit,
	}
}

func (q *SubQueue) depth() int {
	return CountList(&q.Blocks)
}

// flowData is the payload of a TagFlow block.
type flowData struct {
	owner *Block

	ExternalID int
	Input      SubQueue
	Output     SubQueue

	// Self is the refptr obtained for this very flow block at
	// allocation time, per spec.md's description of a flow
	// carrying "a back-reference to a refptr representing the flow
	// itself".
	Self *Refptr

	// ActiveLink is a secondary-link member node used to thread
	// this flow onto the pool's active-flows list without touching
	// its refcount. See Pool.MarkFlowActive.
	ActiveLink Block
}

// CastFlow returns blk's flow payload, or nil if blk is not tagged
// TagFlow.
func CastFlow(blk *Block) *flowData {
	if blk == nil || blk.tag != TagFlow {
		return nil
	}
	return &blk.flow
}

func (f *flowData) Block() *Block { return f.owner }

// AppendSubqBundle pushes ref (a TagRef block) onto the tail of q. If
// q has a nonzero depth limit and is already at that depth, ref is
// recycled immediately and the push is counted as a drop; otherwise
// ref is linked in and counted as a push. Returns true if the bundle
// was accepted.
func (p *Pool) AppendSubqBundle(q *SubQueue, ref *Block) bool {
	unlock := p.lock.Locked()
	defer unlock()

	if ref.tag != TagRef {
		panic("pool: AppendSubqBundle requires a TagRef block")
	}
	if q.depthLimit > 0 && q.depth() >= q.depthLimit {
		q.dropCount++
		p.recycleLocked(ref)
		return false
	}
	InsertBefore(&q.Blocks, ref)
	q.pushCount++
	if d := q.depth(); d > q.highWater {
		q.highWater = d
	}
	return true
}

// ShiftSubqBundle pops and returns the head-most TagRef block from q,
// or nil if q is empty.
func (p *Pool) ShiftSubqBundle(q *SubQueue) *Block {
	unlock := p.lock.Locked()
	defer unlock()

	if IsEmptyHead(&q.Blocks) {
		return nil
	}
	ref := q.Blocks.next
	ExtractNode(ref)
	q.popCount++
	return ref
}

// SubQueueStats takes a consistent snapshot of q's counters under the
// pool lock.
func (p *Pool) SubQueueStats(q *SubQueue) SubQueueStats {
	unlock := p.lock.Locked()
	defer unlock()
	return q.Stats()
}

// MarkFlowActive records that flow has work pending and should be
// visited by the next ProcessAllFlows call. Idempotent: marking an
// already-active flow again is a no-op.
func (p *Pool) MarkFlowActive(flow *Block) {
	unlock := p.lock.Locked()
	defer unlock()
	p.markFlowActiveLocked(flow)
}

func (p *Pool) markFlowActiveLocked(flow *Block) {
	if flow.tag != TagFlow {
		panic("pool: MarkFlowActive requires a TagFlow block")
	}
	link := &flow.flow.ActiveLink
	if link.secondary == nil {
		link.tag = SecondaryLinkBase + 2
		link.next = link
		link.prev = link
		link.secondary = &secondaryLink{base: flow}
	}
	if !IsAttached(link) {
		InsertBefore(&p.activeFlows, link)
	}
}

// ProcessAllFlows visits every flow currently marked active exactly
// once, clearing its active mark before fn runs so fn is free to
// re-mark the flow (e.g. because it still has queued work) without
// that re-mark being visited again in this same call.
func (p *Pool) ProcessAllFlows(fn func(flow *Block)) {
	var toVisit []*Block
	func() {
		unlock := p.lock.Locked()
		defer unlock()
		ForEachInList(&p.activeFlows, true, func(link *Block) bool {
			toVisit = append(toVisit, ObtainBase(link))
			return true
		})
	}()
	for _, flow := range toVisit {
		fn(flow)
	}
}
