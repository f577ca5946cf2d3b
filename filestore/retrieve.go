package filestore

import (
	"io"
	"os"
	"time"

	"github.com/dtn-go/bpcore/mlog"
)

// Retrieve returns the object previously assigned sid, without
// removing it from the store. A hit in the reclaim cache (the usual
// case right after Dequeue returned the same sid) is served without
// touching disk; a miss reopens (or keeps open, repositioning forward
// from wherever the retrieve cursor last left off) the owning chapter
// file and reads the record directly.
//
// An object Retrieve reads from disk is installed locked in the
// reclaim cache until a matching Release call frees it; a cache hit is
// returned as it is, without changing that entry's lock state. If the
// cache slot a disk read needs is still locked by an earlier,
// not-yet-Released read, Retrieve waits for it to free up, bounded by timeout (timeout
// < 0 blocks indefinitely, timeout == 0 polls without blocking),
// returning a KindTimeout error if it never does. Retrieving a sid
// whose chapter the retrieve cursor has not opened before (the very
// first Retrieve on a handle, or any Retrieve after a chapter
// boundary) walks forward from that chapter's first record to the
// target offset, so retrieval order within a chapter need not match
// enqueue order.
func (h *Handle) Retrieve(sid uint64, timeout time.Duration) (handle int32, data []byte, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.inUse {
		panic("filestore: Retrieve on a destroyed handle")
	}

	dataID := dataIDFromSid(sid)
	fileID := fileIDFromData(dataID)
	dataOffset := offsetFromData(dataID)

	if slot := h.cacheSlot(dataID); slot.valid && slot.dataID == dataID {
		return slot.handle, slot.data, nil
	}

	prevDataID := dataIDFromSid(h.retrieveDataID)
	prevFileID := fileIDFromData(prevDataID)
	// The retrieve fd sits just past the record it last read.
	prevDataOffset := offsetFromData(prevDataID) + 1

	if fileID != prevFileID && h.retrieveFd != nil {
		h.retrieveFd.Close()
		h.retrieveFd = nil
	}

	offsetDelta := int64(0)
	if h.retrieveFd == nil {
		fd, openErr := os.OpenFile(datPath(h.root, h.serviceID, fileID), os.O_RDONLY, 0)
		if openErr != nil {
			return 0, nil, newError("Retrieve", KindFailedStore, openErr)
		}
		h.retrieveFd = fd
		// A freshly opened chapter file always starts positioned at
		// its first record, regardless of where the retrieve cursor
		// last was (different chapter, or no prior retrieve at all),
		// so walk forward the full dataOffset to reach the target.
		offsetDelta = int64(dataOffset)
	} else {
		offsetDelta = int64(dataOffset) - int64(prevDataOffset)
		if offsetDelta < 0 {
			offsetDelta = int64(dataOffset)
			if _, seekErr := h.retrieveFd.Seek(0, io.SeekStart); seekErr != nil {
				return 0, nil, newError("Retrieve", KindFailedStore, seekErr)
			}
		}
	}

	for i := int64(0); i < offsetDelta; i++ {
		if skipErr := skipRecord(h.retrieveFd); skipErr != nil {
			h.retrieveFd.Close()
			h.retrieveFd = nil
			return 0, nil, newError("Retrieve", KindFailedStore, skipErr)
		}
	}

	hdr, payload, readErr := readRecord(h.retrieveFd)
	if readErr != nil {
		h.retrieveFd.Close()
		h.retrieveFd = nil
		return 0, nil, newError("Retrieve", KindFailedStore, readErr)
	}

	if h.codec != nil {
		payload, err = h.codec.DecodeBytes(payload, nil)
		if err != nil {
			return 0, nil, newError("Retrieve", KindFailedStore, err)
		}
	}

	h.retrieveDataID = sid

	if waitErr := h.waitForCacheSlotLocked("Retrieve", dataID, timeout); waitErr != nil {
		return 0, nil, waitErr
	}
	h.installCacheLocked(dataID, hdr.Handle, payload)

	mlog.Printf2(mlogTag, "filestore.Retrieve service=%d sid=%d size=%d", h.serviceID, sid, len(payload))
	return hdr.Handle, payload, nil
}

// Release unlocks the reclaim cache entry sid occupies, allowing a
// concurrent Dequeue or Retrieve blocked on that slot to proceed and
// allowing Relinquish to eventually evict it. Releasing a sid whose
// cache entry does not match (already evicted, or never cached) is an
// error, the same way it is in the original store.
func (h *Handle) Release(sid uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.inUse {
		panic("filestore: Release on a destroyed handle")
	}

	dataID := dataIDFromSid(sid)
	slot := h.cacheSlot(dataID)
	if !slot.valid || slot.dataID != dataID {
		return newError("Release", KindFailedStore, nil)
	}

	slot.locked = false
	h.cond.Broadcast()
	return nil
}
