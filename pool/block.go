package pool

// MaxChunkPayload is the largest number of bytes a single cbor_data
// or service_object block can carry. Chosen to match the original
// library's encoded-chunk cap so callers porting encoded bundle
// fragments over do not need to re-chunk them.
const MaxChunkPayload = 320

// NotifyFunc is called when a block reference (a TagRef block created
// by MakeBlockRef) is recycled, after its hold on the target's
// refcount has already been released. It lets the owner of the
// reference clean up side state (remove the block from an index,
// decrement a different counter) without polling.
type NotifyFunc func(ref *Block)

// secondaryLink marks a Block as participating in a second,
// independently ordered list. ObtainBase follows it back to the
// block's primary identity.
type secondaryLink struct {
	base *Block
}

// Block is the single slot type every pool allocation uses,
// regardless of tag. Treat it the way the C original treats a union:
// only the fields relevant to Tag are meaningful at any given time.
// Go does not overlay memory the way a C union does, so instead every
// variant simply gets its own field group; Pool.Create sizes its
// arena in units of this one struct.
type Block struct {
	tag  Tag
	next *Block
	prev *Block

	pool *Pool

	secondary *secondaryLink

	// valid when tag == TagRef
	refTarget *Block
	notify    NotifyFunc
	notifyArg interface{}

	// valid when tag.IsContentTag()
	refcount int32

	// valid when tag == TagCborData || tag == TagServiceObject
	magic   Magic
	length  int
	payload [MaxChunkPayload]byte

	primary   primaryData
	canonical canonicalData
	flow      flowData
}

// Tag returns the block's current tag.
func (b *Block) Tag() Tag { return b.tag }

// InitHead turns b into an empty list head: tagged TagHead, pointing
// to itself in both directions. Every list anchor embedded in a
// Primary, Canonical or SubQueue is initialized this way before use.
func InitHead(b *Block) {
	b.tag = TagHead
	b.next = b
	b.prev = b
}

// IsAttached reports whether b is currently linked into some list
// (as a head with members, or as a member of one).
func IsAttached(b *Block) bool {
	return b.next != b
}

// IsEmptyHead reports whether b is a list head with no members.
func IsEmptyHead(b *Block) bool {
	return b.tag == TagHead && b.next == b
}

// InsertAfter splices node in immediately after anchor.
func InsertAfter(anchor, node *Block) {
	node.next = anchor.next
	node.prev = anchor
	anchor.next.prev = node
	anchor.next = node
}

// InsertBefore splices node in immediately before anchor.
func InsertBefore(anchor, node *Block) {
	node.prev = anchor.prev
	node.next = anchor
	anchor.prev.next = node
	anchor.prev = node
}

// ExtractNode removes node from whatever list it is in and leaves it
// as a detached singleton. A no-op if node was already detached.
func ExtractNode(node *Block) {
	node.prev.next = node.next
	node.next.prev = node.prev
	node.next = node
	node.prev = node
}

// MergeListInto moves every member of src onto the tail of dst,
// leaving src an empty head. Both must be list heads; it is a
// programming error to call this with anything else.
func MergeListInto(dst, src *Block) {
	if src.tag != TagHead || dst.tag != TagHead {
		panic("pool: MergeListInto requires two list heads")
	}
	if src.next == src {
		return
	}
	first, last := src.next, src.prev
	dstLast := dst.prev

	dstLast.next = first
	first.prev = dstLast
	last.next = dst
	dst.prev = last

	src.next = src
	src.prev = src
}

// ForEachInList walks head's members in order, calling fn on each. If
// alwaysRemove is true each member is extracted from the list just
// before fn runs (so fn is free to re-link it elsewhere, e.g. into a
// different list or the pool's recycle list); otherwise the list is
// left untouched. Stops early if fn returns false.
func ForEachInList(head *Block, alwaysRemove bool, fn func(*Block) bool) {
	if head.tag != TagHead {
		panic("pool: ForEachInList requires a list head")
	}
	node := head.next
	for node != head {
		next := node.next
		if alwaysRemove {
			ExtractNode(node)
		}
		if !fn(node) {
			return
		}
		node = next
	}
}

// CountList returns the number of members in head's list, not
// counting head itself. O(n); intended for tests and diagnostics.
func CountList(head *Block) int {
	n := 0
	for node := head.next; node != head; node = node.next {
		n++
	}
	return n
}

// ObtainBase resolves blk to the block it is really about: following
// a block reference (TagRef) to its target, then following a secondary
// link to its owning block. Returns blk unchanged if neither applies.
func ObtainBase(blk *Block) *Block {
	if blk == nil {
		return nil
	}
	if blk.tag == TagRef && blk.refTarget != nil {
		blk = blk.refTarget
	}
	if blk.secondary != nil {
		blk = blk.secondary.base
	}
	return blk
}
