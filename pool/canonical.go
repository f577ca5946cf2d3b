package pool

// canonicalData is the payload of a TagCanonical block.
type canonicalData struct {
	owner *Block

	// Chunks is the head of this canonical block's own
	// encoded-chunk chain, same idea as primaryData.Chunks.
	Chunks Block

	// BundleRef points back at the owning primary block. It is a
	// plain pointer, not a secondary link: spec.md describes it as
	// data the canonical block carries, not a list membership.
	BundleRef *Block

	BlockEncodeSizeCache int
	EncodedContentOffset int
	EncodedContentLength int

	// Logical carries the decoded canonical block fields (block
	// type code, CRC type, block-specific data). Opaque to this
	// package for the same reason primaryData.Logical is.
	Logical interface{}
}

// CastCanonical returns blk's canonical payload, or nil if blk is not
// tagged TagCanonical.
func CastCanonical(blk *Block) *canonicalData {
	if blk == nil || blk.tag != TagCanonical {
		return nil
	}
	return &blk.canonical
}

func (c *canonicalData) Block() *Block { return c.owner }
