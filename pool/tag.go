package pool

// Tag identifies what a Block currently holds. It plays the role the
// bplib mpool header calls blocktype: every block, regardless of what
// arena slot it came from, carries one of these in its first field,
// and every list walk, cast and refcount decision starts by looking at
// it.
type Tag uint16

const (
	// TagUndefined marks a slot that has been handed back to the
	// pool's free list and is not currently part of any list.
	TagUndefined Tag = 0

	// TagHead marks a block that only ever serves as a list
	// anchor: it is never allocated on its own, only embedded as a
	// field of something else (a SubQueue, a Primary's canonical
	// list, the pool's own free/recycle/active lists).
	TagHead Tag = 1

	// TagRef marks a block reference (see MakeBlockRef): a pool
	// slot holding an owned refcount on a content block plus an
	// optional notify callback, with no content of its own. Light
	// references (Refptr) are not blocks and carry no tag.
	TagRef Tag = 2

	// TagCborData marks a generic data chunk: up to
	// MaxChunkPayload bytes of opaque content, typically one link
	// in a primary or canonical block's encoded-chunk chain.
	TagCborData Tag = 3

	// TagServiceObject marks a generic data chunk owned by code
	// outside this package (the CBOR encoder, routing policy) that
	// wants pool-managed storage without the pool understanding
	// its contents. Distinguished from TagCborData only so a
	// caller's ForEach filter can tell the two apart.
	TagServiceObject Tag = 4

	// TagPrimary marks a bundle's primary block: the owner of a
	// canonical-block list and an encoded-chunk list.
	TagPrimary Tag = 5

	// TagCanonical marks one canonical (extension) block belonging
	// to exactly one primary block.
	TagCanonical Tag = 6

	// TagFlow marks a flow: an input/output SubQueue pair attached
	// to some external interface.
	TagFlow Tag = 7

	// tagMax is one past the last concrete content tag; used by
	// IsContentTag's range check, never assigned to a block.
	tagMax Tag = 8

	// SecondaryLinkBase offsets a block's *secondary* link tag.
	// Blocks needing to belong to a second, independently ordered
	// list store a secondaryLink value and tag it
	// SecondaryLinkBase+n for a caller-chosen small n, purely so
	// debug dumps and ForEach filters can tell one secondary index
	// from another. Unlike the C original this package does not
	// recover the owning block by subtracting a byte offset from
	// the tag; it stores a direct back-pointer instead (see
	// secondaryLink), since Go has no portable way to do the
	// pointer arithmetic the C implementation relies on.
	SecondaryLinkBase Tag = 1000
)

// IsContentTag reports whether t identifies a block that carries a
// refcount and is eligible for referencing (light or block
// reference). This is the tag-range check spec'd for the pool: any
// tag strictly between TagRef and tagMax.
func (t Tag) IsContentTag() bool {
	return t > TagRef && t < tagMax
}

// IsSecondary reports whether t is a secondary-link tag.
func (t Tag) IsSecondary() bool {
	return t >= SecondaryLinkBase
}

func (t Tag) String() string {
	switch {
	case t.IsSecondary():
		return "secondary"
	case t == TagUndefined:
		return "undefined"
	case t == TagHead:
		return "head"
	case t == TagRef:
		return "ref"
	case t == TagCborData:
		return "cbor_data"
	case t == TagServiceObject:
		return "service_object"
	case t == TagPrimary:
		return "primary"
	case t == TagCanonical:
		return "canonical"
	case t == TagFlow:
		return "flow"
	default:
		return "unknown"
	}
}

// Magic lets code outside this package (the CBOR encoder, routing
// policy) tag its own TagServiceObject blocks without this package
// knowing anything about them. AllocGenericDataBlock stores it on the
// block; this package has no cast or accessor that reads it back or
// checks it.
type Magic uint32
