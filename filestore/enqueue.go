package filestore

import (
	"io"
	"os"

	"github.com/dtn-go/bpcore/mlog"
	"github.com/dtn-go/bpcore/util"
)

// Enqueue appends one object, the concatenation of buf1 and buf2,
// to the store and returns the sid it was assigned. Returns a
// KindFailedOS error if the underlying file write fails; the chapter
// file is then closed, and the next Enqueue reopens it and walks
// forward to the record's position again.
func (h *Handle) Enqueue(handle int32, buf1, buf2 []byte) (sid uint64, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.inUse {
		panic("filestore: Enqueue on a destroyed handle")
	}

	payload := util.ConcatBytes(buf1, buf2)
	if h.codec != nil {
		payload, err = h.codec.EncodeBytes(payload, nil)
		if err != nil {
			return 0, newError("Enqueue", KindFailedStore, err)
		}
	}

	dataID := dataIDFromSid(h.writeDataID)
	fileID := fileIDFromData(dataID)
	offset := offsetFromData(dataID)

	if h.writeFd == nil {
		fd, openErr := os.OpenFile(datPath(h.root, h.serviceID, fileID), os.O_RDWR|os.O_CREATE, 0o644)
		if openErr != nil {
			h.writeError = true
			return 0, newError("Enqueue", KindFailedOS, openErr)
		}
		if offset == 0 {
			if _, err = fd.Seek(0, io.SeekStart); err != nil {
				fd.Close()
				h.writeError = true
				return 0, newError("Enqueue", KindFailedOS, err)
			}
		} else if err = resyncToOffset(fd, offset); err != nil {
			fd.Close()
			h.writeError = true
			return 0, newError("Enqueue", KindFailedOS, err)
		}
		h.writeFd = fd
	}

	hdr := objectHeader{Handle: handle, Sid: sidVacant, Size: uint32(len(payload))}
	if err = writeRecord(h.writeFd, hdr, payload); err != nil {
		h.writeError = true
		h.writeFd.Close()
		h.writeFd = nil
		return 0, newError("Enqueue", KindFailedOS, err)
	}

	sid = h.writeDataID
	h.writeDataID++
	h.dataCount++

	if h.writeDataID%FileDataCount == 1 {
		// just crossed a chapter boundary
		h.writeFd.Close()
		h.writeFd = nil
	}

	h.cond.Broadcast()
	mlog.Printf2(mlogTag, "filestore.Enqueue service=%d sid=%d size=%d", h.serviceID, sid, len(payload))
	return sid, nil
}
