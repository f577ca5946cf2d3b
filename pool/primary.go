package pool

import "time"

// DeliveryPolicy selects how aggressively a primary block's bundle is
// retried/escorted toward its destination. The pool does not act on
// this itself; it is carried for the forwarding/retransmission logic
// that sits outside this module.
type DeliveryPolicy int

const (
	DeliveryPolicyDefault DeliveryPolicy = iota
	DeliveryPolicyCustodyTracked
	DeliveryPolicyLocalOnly
)

// DeliveryData mirrors the original library's per-bundle delivery
// bookkeeping: which interfaces touched it and when, and the
// retransmission timing a scheduler external to this package
// consults. Supplementing spec.md's bare "Primary block: ... logical
// data placeholder" with these fields is what lets RetxLink (below)
// mean something concrete.
type DeliveryData struct {
	Policy              DeliveryPolicy
	IngressIntfID       int
	EgressIntfID        int
	StorageIntfID       int
	CommittedStorageID  uint64
	LocalRetxInterval   time.Duration
	IngressTime         time.Time
	EgressTime          time.Time
}

// primaryData is the payload of a TagPrimary block.
type primaryData struct {
	owner *Block

	// Canonicals is the head of this bundle's canonical block
	// list; Chunks is the head of its encoded-chunk chain (the
	// wire-ready bytes, in ≤MaxChunkPayload pieces).
	Canonicals Block
	Chunks     Block

	BlockEncodeSizeCache  int
	BundleEncodeSizeCache int

	// Logical carries the decoded bundle header fields. This
	// package never looks inside it; it is opaque storage for the
	// CBOR encoder/decoder that lives outside this module.
	Logical interface{}

	Delivery DeliveryData

	// RetxLink is a secondary-link member node that lets this
	// primary block join a pool-wide retransmission-time-ordered
	// index (see Pool.ScheduleRetransmit) without consuming a
	// second arena slot or bumping its own refcount.
	RetxLink Block
}

// CastPrimary returns blk's primary payload, or nil if blk is not
// tagged TagPrimary.
func CastPrimary(blk *Block) *primaryData {
	if blk == nil || blk.tag != TagPrimary {
		return nil
	}
	return &blk.primary
}

// Block returns the Block that owns this primary payload.
func (p *primaryData) Block() *Block { return p.owner }
