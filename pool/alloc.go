package pool

// AllocPrimary allocates a new, empty primary block: its canonical
// and chunk lists are initialized but empty, its refcount starts at
// zero (the caller is expected to wrap it in a reference before
// letting go of the returned pointer; see MakeDynamicObject).
func (p *Pool) AllocPrimary() (*Block, error) {
	unlock := p.lock.Locked()
	defer unlock()

	blk, err := p.obtainFreeBlockLocked("AllocPrimary")
	if err != nil {
		return nil, err
	}
	blk.tag = TagPrimary
	blk.primary.owner = blk
	InitHead(&blk.primary.Canonicals)
	InitHead(&blk.primary.Chunks)
	blk.primary.RetxLink.tag = SecondaryLinkBase + 1
	blk.primary.RetxLink.next = &blk.primary.RetxLink
	blk.primary.RetxLink.prev = &blk.primary.RetxLink
	blk.primary.RetxLink.secondary = &secondaryLink{base: blk}
	return blk, nil
}

// AllocCanonical allocates a new canonical block and links it onto
// the tail of primary's canonical list. bundleRef is set so the
// canonical block can find its owning bundle later.
func (p *Pool) AllocCanonical(primary *Block) (*Block, error) {
	if primary.tag != TagPrimary {
		panic("pool: AllocCanonical requires a primary block")
	}

	unlock := p.lock.Locked()
	defer unlock()

	blk, err := p.obtainFreeBlockLocked("AllocCanonical")
	if err != nil {
		return nil, err
	}
	blk.tag = TagCanonical
	blk.canonical.owner = blk
	blk.canonical.BundleRef = primary
	InitHead(&blk.canonical.Chunks)
	InsertBefore(&primary.primary.Canonicals, blk)
	return blk, nil
}

// StoreCanonicalBlock is an alias for AllocCanonical kept for parity
// with the vocabulary spec.md uses ("store a canonical block"):
// allocate one and attach it to primary in the same step.
func (p *Pool) StoreCanonicalBlock(primary *Block) (*Block, error) {
	return p.AllocCanonical(primary)
}

// AllocCborDataBlock allocates a generic cbor_data chunk holding a
// copy of data. len(data) must not exceed MaxChunkPayload.
func (p *Pool) AllocCborDataBlock(data []byte) (*Block, error) {
	if len(data) > MaxChunkPayload {
		return nil, newError("AllocCborDataBlock", KindInvalidBlock, nil)
	}
	unlock := p.lock.Locked()
	defer unlock()

	blk, err := p.obtainFreeBlockLocked("AllocCborDataBlock")
	if err != nil {
		return nil, err
	}
	blk.tag = TagCborData
	blk.length = copy(blk.payload[:], data)
	return blk, nil
}

// AllocGenericDataBlock allocates a generic service_object chunk
// tagged with magic, owned by code outside this package.
func (p *Pool) AllocGenericDataBlock(magic Magic, data []byte) (*Block, error) {
	if len(data) > MaxChunkPayload {
		return nil, newError("AllocGenericDataBlock", KindInvalidBlock, nil)
	}
	unlock := p.lock.Locked()
	defer unlock()

	blk, err := p.obtainFreeBlockLocked("AllocGenericDataBlock")
	if err != nil {
		return nil, err
	}
	blk.tag = TagServiceObject
	blk.magic = magic
	blk.length = copy(blk.payload[:], data)
	return blk, nil
}

// AppendCborBlock appends chunk (a TagCborData or TagServiceObject
// block) to the tail of head, which must be a chunk-chain list head
// (Primary.Chunks or Canonical.Chunks).
func AppendCborBlock(head, chunk *Block) {
	if head.tag != TagHead {
		panic("pool: AppendCborBlock requires a list head")
	}
	if chunk.tag != TagCborData && chunk.tag != TagServiceObject {
		panic("pool: AppendCborBlock requires a data chunk block")
	}
	InsertBefore(head, chunk)
}

// AllocFlow allocates a new flow block with input/output sub-queues
// of the given depth limits and wraps it in its own refptr (Self,
// reachable as CastFlow(blk).Self). Only the block is returned; the
// Self reference keeps the flow alive, and a caller that needs an
// independent reference duplicates Self.
func (p *Pool) AllocFlow(externalID, inputDepthLimit, outputDepthLimit int) (*Block, error) {
	unlock := p.lock.Locked()
	defer unlock()

	blk, err := p.obtainFreeBlockLocked("AllocFlow")
	if err != nil {
		return nil, err
	}
	blk.tag = TagFlow
	blk.flow.owner = blk
	blk.flow.ExternalID = externalID
	InitSubQueue(&blk.flow.Input, inputDepthLimit)
	InitSubQueue(&blk.flow.Output, outputDepthLimit)
	blk.flow.ActiveLink.next = &blk.flow.ActiveLink
	blk.flow.ActiveLink.prev = &blk.flow.ActiveLink

	blk.flow.Self = p.makeDynamicLocked(blk)
	return blk, nil
}

// GetGenericDataCapacity returns how many more payload bytes a
// cbor_data/service_object block has room for.
func GetGenericDataCapacity(blk *Block) int {
	if blk.tag != TagCborData && blk.tag != TagServiceObject {
		return 0
	}
	return MaxChunkPayload - blk.length
}

// SetCborContentSize overwrites the used-length of a data chunk
// block, e.g. after a caller writes directly into GenericData's
// backing bytes.
func SetCborContentSize(blk *Block, size int) {
	if blk.tag != TagCborData && blk.tag != TagServiceObject {
		panic("pool: SetCborContentSize requires a data chunk block")
	}
	if size < 0 || size > MaxChunkPayload {
		panic("pool: SetCborContentSize out of range")
	}
	blk.length = size
}

// GetUserContentSize returns the used-length of a data chunk block.
func GetUserContentSize(blk *Block) int {
	if blk.tag != TagCborData && blk.tag != TagServiceObject {
		return 0
	}
	return blk.length
}

// GenericData returns the used portion of a data chunk block's
// payload buffer.
func GenericData(blk *Block) []byte {
	if blk.tag != TagCborData && blk.tag != TagServiceObject {
		return nil
	}
	return blk.payload[:blk.length]
}

// GetReadRefcount returns blk's current refcount. Valid only for
// content blocks (Tag().IsContentTag()); zero otherwise.
func GetReadRefcount(blk *Block) int {
	if !blk.tag.IsContentTag() {
		return 0
	}
	return int(blk.refcount)
}
