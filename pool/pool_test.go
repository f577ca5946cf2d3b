package pool

import (
	"testing"
	"time"

	"github.com/stvp/assert"
)

func TestCreateRejectsBadCapacity(t *testing.T) {
	_, err := Create(0)
	assert.NotNil(t, err)
	perr, ok := err.(*Error)
	assert.True(t, ok)
	assert.Equal(t, perr.Kind, KindInvalidArena)
}

func TestCreateInitializesFreeList(t *testing.T) {
	p, err := Create(4)
	assert.Nil(t, err)
	assert.Equal(t, p.Capacity(), 4)
	assert.Equal(t, p.Allocated(), 0)
	assert.Equal(t, CountList(&p.free), 4)
}

func TestAllocExhaustsAndReportsExhausted(t *testing.T) {
	p, _ := Create(1)
	blk, err := p.AllocPrimary()
	assert.Nil(t, err)
	assert.NotNil(t, blk)

	_, err = p.AllocPrimary()
	assert.NotNil(t, err)
	perr := err.(*Error)
	assert.Equal(t, perr.Kind, KindExhausted)
}

func TestContentTagRange(t *testing.T) {
	assert.False(t, TagUndefined.IsContentTag())
	assert.False(t, TagHead.IsContentTag())
	assert.False(t, TagRef.IsContentTag())
	assert.True(t, TagCborData.IsContentTag())
	assert.True(t, TagServiceObject.IsContentTag())
	assert.True(t, TagPrimary.IsContentTag())
	assert.True(t, TagCanonical.IsContentTag())
	assert.True(t, TagFlow.IsContentTag())
	assert.False(t, (SecondaryLinkBase + 1).IsContentTag())
}

func TestListInsertExtractMerge(t *testing.T) {
	var h1, h2, a, b, c Block
	InitHead(&h1)
	InitHead(&h2)
	a.next, a.prev = &a, &a
	b.next, b.prev = &b, &b
	c.next, c.prev = &c, &c

	InsertBefore(&h1, &a)
	InsertBefore(&h1, &b)
	assert.Equal(t, CountList(&h1), 2)
	assert.True(t, IsAttached(&a))

	InsertBefore(&h2, &c)
	MergeListInto(&h1, &h2)
	assert.Equal(t, CountList(&h1), 3)
	assert.True(t, IsEmptyHead(&h2))

	ExtractNode(&b)
	assert.Equal(t, CountList(&h1), 2)
	assert.False(t, IsAttached(&b))
}

func TestForEachInListAlwaysRemove(t *testing.T) {
	var head, a, b Block
	InitHead(&head)
	a.next, a.prev = &a, &a
	b.next, b.prev = &b, &b
	InsertBefore(&head, &a)
	InsertBefore(&head, &b)

	var seen []*Block
	ForEachInList(&head, true, func(n *Block) bool {
		seen = append(seen, n)
		return true
	})
	assert.Equal(t, len(seen), 2)
	assert.True(t, IsEmptyHead(&head))
}

func TestPrimaryCanonicalAllocationAndCast(t *testing.T) {
	p, _ := Create(8)
	primary, err := p.AllocPrimary()
	assert.Nil(t, err)
	assert.Equal(t, primary.Tag(), TagPrimary)
	assert.NotNil(t, CastPrimary(primary))
	assert.Nil(t, CastCanonical(primary))

	canon, err := p.AllocCanonical(primary)
	assert.Nil(t, err)
	assert.Equal(t, canon.Tag(), TagCanonical)
	assert.Equal(t, CountList(&primary.primary.Canonicals), 1)
	assert.Equal(t, CastCanonical(canon).BundleRef, primary)
}

func TestChunkAllocationAndCapacity(t *testing.T) {
	p, _ := Create(4)
	data := []byte("hello bundle")
	chunk, err := p.AllocCborDataBlock(data)
	assert.Nil(t, err)
	assert.Equal(t, GetUserContentSize(chunk), len(data))
	assert.Equal(t, GetGenericDataCapacity(chunk), MaxChunkPayload-len(data))
	assert.Equal(t, string(GenericData(chunk)), "hello bundle")

	_, err = p.AllocCborDataBlock(make([]byte, MaxChunkPayload+1))
	assert.NotNil(t, err)
}

func TestRefcountingAndMaintainRecyclesZeroRefcount(t *testing.T) {
	p, _ := Create(4)
	primary, _ := p.AllocPrimary()
	rp := p.MakeDynamicObject(primary)
	assert.Equal(t, GetReadRefcount(primary), 1)

	rp2 := p.DuplicateLightReference(rp)
	assert.Equal(t, GetReadRefcount(primary), 2)

	assert.Equal(t, p.Allocated(), 1)
	p.ReleaseLightReference(rp)
	assert.Equal(t, GetReadRefcount(primary), 1)
	assert.Equal(t, p.Allocated(), 1)

	p.ReleaseLightReference(rp2)
	assert.Equal(t, GetReadRefcount(primary), 0)
	// still allocated until Maintain drains the recycle list
	assert.Equal(t, p.Allocated(), 1)

	p.Maintain()
	assert.Equal(t, p.Allocated(), 0)
	assert.Equal(t, CountList(&p.free), 4)
}

func TestBlockReferenceNotifyRunsOnMaintain(t *testing.T) {
	p, _ := Create(4)
	primary, _ := p.AllocPrimary()
	rp := p.MakeDynamicObject(primary)
	_ = rp

	notified := 0
	ref, err := p.MakeBlockRef(primary, func(r *Block) {
		notified++
	}, "arg")
	assert.Nil(t, err)
	assert.Equal(t, GetReadRefcount(primary), 2)

	p.RecycleBlock(ref)
	assert.Equal(t, notified, 0) // deferred until Maintain

	p.Maintain()
	assert.Equal(t, notified, 1)
	assert.Equal(t, GetReadRefcount(primary), 1)
}

func TestSubQueueDepthLimitDropsExcess(t *testing.T) {
	p, _ := Create(8)
	primary, _ := p.AllocPrimary()
	p.MakeDynamicObject(primary)

	var q SubQueue
	InitSubQueue(&q, 1)

	ref1, _ := p.MakeBlockRef(primary, nil, nil)
	ok := p.AppendSubqBundle(&q, ref1)
	assert.True(t, ok)

	ref2, _ := p.MakeBlockRef(primary, nil, nil)
	ok = p.AppendSubqBundle(&q, ref2)
	assert.False(t, ok)

	stats := p.SubQueueStats(&q)
	assert.Equal(t, stats.PushCount, int64(1))
	assert.Equal(t, stats.DropCount, int64(1))
}

func TestSubQueuePushAndShiftOrder(t *testing.T) {
	p, _ := Create(8)
	primary, _ := p.AllocPrimary()
	p.MakeDynamicObject(primary)

	var q SubQueue
	InitSubQueue(&q, 0)

	ref1, _ := p.MakeBlockRef(primary, nil, nil)
	ref2, _ := p.MakeBlockRef(primary, nil, nil)
	p.AppendSubqBundle(&q, ref1)
	p.AppendSubqBundle(&q, ref2)

	got1 := p.ShiftSubqBundle(&q)
	got2 := p.ShiftSubqBundle(&q)
	got3 := p.ShiftSubqBundle(&q)
	assert.Equal(t, got1, ref1)
	assert.Equal(t, got2, ref2)
	assert.Nil(t, got3)
}

func TestFlowActivationProcessedOnceAndCleared(t *testing.T) {
	p, _ := Create(8)
	flow, err := p.AllocFlow(1, 0, 0)
	assert.Nil(t, err)
	assert.Equal(t, flow.Tag(), TagFlow)
	assert.NotNil(t, CastFlow(flow).Self)

	p.MarkFlowActive(flow)
	p.MarkFlowActive(flow) // idempotent

	visits := 0
	p.ProcessAllFlows(func(f *Block) {
		visits++
		assert.Equal(t, f, flow)
	})
	assert.Equal(t, visits, 1)

	// a flow not re-marked is not visited again
	visits = 0
	p.ProcessAllFlows(func(f *Block) { visits++ })
	assert.Equal(t, visits, 0)
}

func TestObtainBaseResolvesRefAndSecondary(t *testing.T) {
	p, _ := Create(8)
	primary, _ := p.AllocPrimary()
	p.MakeDynamicObject(primary)

	ref, _ := p.MakeBlockRef(primary, nil, nil)
	assert.Equal(t, ObtainBase(ref), primary)

	p.ScheduleRetransmit(primary)
	link := &primary.primary.RetxLink
	assert.Equal(t, ObtainBase(link), primary)
}

func TestRetransmitOrderingByDueTime(t *testing.T) {
	p, _ := Create(8)
	now := time.Unix(1000, 0)

	mkPrimary := func(egress time.Time, interval time.Duration) *Block {
		blk, _ := p.AllocPrimary()
		p.MakeDynamicObject(blk)
		blk.primary.Delivery.EgressTime = egress
		blk.primary.Delivery.LocalRetxInterval = interval
		return blk
	}

	late := mkPrimary(now, 30*time.Second)
	early := mkPrimary(now, 5*time.Second)
	mid := mkPrimary(now, 15*time.Second)

	p.ScheduleRetransmit(late)
	p.ScheduleRetransmit(early)
	p.ScheduleRetransmit(mid)

	assert.Equal(t, p.NextRetransmit(), early)
	p.CancelRetransmit(early)
	assert.Equal(t, p.NextRetransmit(), mid)
	p.CancelRetransmit(mid)
	assert.Equal(t, p.NextRetransmit(), late)
}

func TestPrimaryRecycleCascadesToCanonicalsAndChunks(t *testing.T) {
	p, _ := Create(8)
	primary, _ := p.AllocPrimary()
	rp := p.MakeDynamicObject(primary)

	canon, _ := p.AllocCanonical(primary)
	chunk, _ := p.AllocCborDataBlock([]byte("x"))
	AppendCborBlock(&canon.canonical.Chunks, chunk)

	assert.Equal(t, p.Allocated(), 3)

	p.ReleaseLightReference(rp)
	p.Maintain()
	assert.Equal(t, p.Allocated(), 0)
	assert.Equal(t, CountList(&p.free), 8)
}
