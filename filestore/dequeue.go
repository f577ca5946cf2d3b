package filestore

import (
	"os"
	"time"

	"github.com/dtn-go/bpcore/mlog"
)

// Dequeue blocks until at least one enqueued-but-not-yet-dequeued
// object is available, or timeout elapses, then returns the next one
// in enqueue order. timeout < 0 blocks indefinitely; timeout == 0
// polls without blocking. The returned data is a fresh copy; the
// store's reclaim cache keeps its own copy for a subsequent Retrieve
// by the same sid.
func (h *Handle) Dequeue(timeout time.Duration) (sid uint64, objHandle int32, data []byte, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.inUse {
		panic("filestore: Dequeue on a destroyed handle")
	}

	for h.readDataID == h.writeDataID {
		if timedOut := waitTimeout(h.cond, timeout); timedOut && h.readDataID == h.writeDataID {
			return 0, 0, nil, newError("Dequeue", KindTimeout, nil)
		}
	}

	dataID := dataIDFromSid(h.readDataID)
	fileID := fileIDFromData(dataID)
	offset := offsetFromData(dataID)

	if h.readFd == nil {
		fd, openErr := os.OpenFile(datPath(h.root, h.serviceID, fileID), os.O_RDONLY, 0)
		if openErr != nil {
			h.readError = true
			return 0, 0, nil, newError("Dequeue", KindFailedOS, openErr)
		}
		if offset == 0 {
			fd.Seek(0, 0)
		} else if err = resyncToOffset(fd, offset); err != nil {
			fd.Close()
			h.readError = true
			return 0, 0, nil, newError("Dequeue", KindFailedOS, err)
		}
		h.readFd = fd
	}

	hdr, payload, readErr := readRecord(h.readFd)
	if readErr != nil {
		h.readError = true
		h.readFd.Close()
		h.readFd = nil
		return 0, 0, nil, newError("Dequeue", KindFailedStore, readErr)
	}

	if h.codec != nil {
		payload, err = h.codec.DecodeBytes(payload, nil)
		if err != nil {
			return 0, 0, nil, newError("Dequeue", KindFailedStore, err)
		}
	}

	sid = h.readDataID
	if waitErr := h.waitForCacheSlotLocked("Dequeue", dataID, timeout); waitErr != nil {
		return 0, 0, nil, waitErr
	}
	h.installCacheLocked(dataID, hdr.Handle, append([]byte(nil), payload...))

	h.readDataID++
	if h.readDataID%FileDataCount == 1 {
		h.readFd.Close()
		h.readFd = nil
	}

	mlog.Printf2(mlogTag, "filestore.Dequeue service=%d sid=%d size=%d", h.serviceID, sid, len(payload))
	return sid, hdr.Handle, payload, nil
}

func (h *Handle) cacheSlot(dataID uint64) *cacheEntry {
	return &h.cache[dataID%uint64(len(h.cache))]
}

// waitForCacheSlotLocked blocks (mu held) until the cache slot dataID
// would occupy is not locked by an earlier, not-yet-Released read, or
// until timeout elapses, in which case it returns a KindTimeout error
// tagged with op.
func (h *Handle) waitForCacheSlotLocked(op string, dataID uint64, timeout time.Duration) error {
	slot := h.cacheSlot(dataID)
	for slot.valid && slot.locked {
		if waitTimeout(h.cond, timeout) {
			return newError(op, KindTimeout, nil)
		}
		slot = h.cacheSlot(dataID)
	}
	return nil
}

func (h *Handle) installCacheLocked(dataID uint64, handle int32, data []byte) {
	slot := h.cacheSlot(dataID)
	*slot = cacheEntry{valid: true, locked: true, dataID: dataID, handle: handle, data: data}
}
