package pool

import (
	"math/rand"
	"sync"
	"time"

	"github.com/dtn-go/bpcore/util"
)

var (
	retransmitRngOnce sync.Once
	retransmitRngLock sync.Mutex
	retransmitRng     *rand.Rand
)

// jitter returns a uniform random duration in [-maxJitter, maxJitter).
// math/rand.Rand is not safe for concurrent use on its own, so access
// to the shared source is serialized here.
func jitter(maxJitter time.Duration) time.Duration {
	retransmitRngOnce.Do(func() { retransmitRng = util.GetSeededRng() })
	retransmitRngLock.Lock()
	defer retransmitRngLock.Unlock()
	return time.Duration(retransmitRng.Int63n(int64(2*maxJitter))) - maxJitter
}

// ScheduleRetransmitWithJitter is ScheduleRetransmit, except
// Delivery.LocalRetxInterval is perturbed by up to +/- maxJitter
// first. Spreading otherwise-identical retx intervals out like this
// is standard practice for custody-based retransmission, to keep a
// batch of bundles that all missed custody acceptance at the same
// moment from all retransmitting in the same instant again.
// maxJitter <= 0 is the same as calling ScheduleRetransmit directly.
func (p *Pool) ScheduleRetransmitWithJitter(primary *Block, maxJitter time.Duration) {
	if primary.tag != TagPrimary {
		panic("pool: ScheduleRetransmitWithJitter requires a primary block")
	}
	if maxJitter > 0 {
		primary.primary.Delivery.LocalRetxInterval += jitter(maxJitter)
		if primary.primary.Delivery.LocalRetxInterval < 0 {
			primary.primary.Delivery.LocalRetxInterval = 0
		}
	}
	p.ScheduleRetransmit(primary)
}

// ScheduleRetransmit inserts primary into the pool-wide
// retransmit-time-ordered index, keyed by
// Delivery.EgressTime.Add(Delivery.LocalRetxInterval). It uses
// primary's RetxLink secondary-link node rather than a fresh
// allocation or the primary's own refcount, since membership in this
// index is bookkeeping about timing, not ownership.
//
// This is the concrete consumer of the secondary-link mechanism the
// original pool header describes only in the abstract ("more than one
// way of indexing data blocks, for example ... by DTN time"): here
// the second index is exactly that, a by-time view over primary
// blocks that are already indexed by identity everywhere else.
func (p *Pool) ScheduleRetransmit(primary *Block) {
	if primary.tag != TagPrimary {
		panic("pool: ScheduleRetransmit requires a primary block")
	}

	unlock := p.lock.Locked()
	defer unlock()

	link := &primary.primary.RetxLink
	if IsAttached(link) {
		ExtractNode(link)
	}

	due := primary.primary.Delivery.EgressTime.Add(primary.primary.Delivery.LocalRetxInterval)
	anchor := &p.retransmitOrder
	for node := p.retransmitOrder.next; node != &p.retransmitOrder; node = node.next {
		owner := ObtainBase(node)
		nodeDue := owner.primary.Delivery.EgressTime.Add(owner.primary.Delivery.LocalRetxInterval)
		if due.Before(nodeDue) {
			anchor = node
			break
		}
	}
	InsertBefore(anchor, link)
}

// CancelRetransmit removes primary from the retransmit-time-ordered
// index, if it is currently in it.
func (p *Pool) CancelRetransmit(primary *Block) {
	if primary.tag != TagPrimary {
		panic("pool: CancelRetransmit requires a primary block")
	}
	unlock := p.lock.Locked()
	defer unlock()
	ExtractNode(&primary.primary.RetxLink)
}

// NextRetransmit returns the primary block with the earliest
// scheduled retransmit time still in the index, without removing it,
// or nil if the index is empty.
func (p *Pool) NextRetransmit() *Block {
	unlock := p.lock.Locked()
	defer unlock()
	if IsEmptyHead(&p.retransmitOrder) {
		return nil
	}
	return ObtainBase(p.retransmitOrder.next)
}
