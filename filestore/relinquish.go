package filestore

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/dtn-go/bpcore/mlog"
)

const freeTableSize = FileDataCount + 4

func encodeFreeTable(t freeTable) []byte {
	buf := make([]byte, freeTableSize)
	for i, f := range t.freed {
		if f {
			buf[i] = 1
		}
	}
	binary.LittleEndian.PutUint32(buf[FileDataCount:], uint32(t.freeCount))
	return buf
}

func decodeFreeTable(buf []byte) freeTable {
	var t freeTable
	for i := range t.freed {
		t.freed[i] = buf[i] != 0
	}
	t.freeCount = int(binary.LittleEndian.Uint32(buf[FileDataCount:]))
	return t
}

// Relinquish marks sid's record as no longer needed. It evicts any
// matching reclaim-cache entry, loads the owning chapter's relinquish
// table (persisting the previous chapter's table first, if it has any
// relinquished records worth remembering across a restart), and once
// every record in a chapter has been relinquished deletes that
// chapter's .dat and .tbl files.
func (h *Handle) Relinquish(sid uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.inUse {
		panic("filestore: Relinquish on a destroyed handle")
	}

	dataID := dataIDFromSid(sid)
	fileID := fileIDFromData(dataID)
	dataOffset := offsetFromData(dataID)

	if slot := h.cacheSlot(dataID); slot.valid && slot.dataID == dataID {
		*slot = cacheEntry{}
	}

	prevDataID := dataIDFromSid(h.relinquishDataID)
	prevFileID := fileIDFromData(prevDataID)

	if fileID != prevFileID {
		prevTable := h.relinquishTable
		prevTableFileID := h.relinquishFileID

		h.relinquishDataID = sid
		h.relinquishFileID = fileID

		if prevTable.freeCount > 0 {
			if err := writeTblFile(h.root, h.serviceID, prevTableFileID, prevTable); err != nil {
				return newError("Relinquish", KindFailedStore, err)
			}
		}

		table, err := readTblFile(h.root, h.serviceID, fileID)
		if err != nil {
			return newError("Relinquish", KindFailedStore, err)
		}
		h.relinquishTable = table
	}

	if !h.relinquishTable.freed[dataOffset] {
		h.relinquishTable.freed[dataOffset] = true
		h.dataCount--
		h.relinquishTable.freeCount++

		if h.relinquishTable.freeCount == FileDataCount {
			_ = os.Remove(tblPath(h.root, h.serviceID, fileID))
			if err := os.Remove(datPath(h.root, h.serviceID, fileID)); err != nil && !os.IsNotExist(err) {
				return newError("Relinquish", KindFailedOS, err)
			}
		}
	}

	mlog.Printf2(mlogTag, "filestore.Relinquish service=%d sid=%d", h.serviceID, sid)
	return nil
}

// flushRelinquishTableLocked persists the relinquish cursor's
// in-memory table for whichever chapter it currently covers, if that
// chapter still has relinquished records worth remembering. Called
// from Destroy so a clean shutdown does not lose relinquish progress
// a future Create for the same root would otherwise have to redo.
func (h *Handle) flushRelinquishTableLocked() {
	if h.relinquishTable.freeCount == 0 {
		return
	}
	_ = writeTblFile(h.root, h.serviceID, h.relinquishFileID, h.relinquishTable)
}

func writeTblFile(root string, serviceID, fileID uint64, t freeTable) error {
	if t.freeCount >= FileDataCount {
		// the whole chapter is relinquished and its files are removed
		return nil
	}
	fd, err := os.OpenFile(tblPath(root, serviceID, fileID), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer fd.Close()
	_, err = fd.Write(encodeFreeTable(t))
	return err
}

func readTblFile(root string, serviceID, fileID uint64) (freeTable, error) {
	fd, err := os.Open(tblPath(root, serviceID, fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return freeTable{}, nil
		}
		return freeTable{}, err
	}
	defer fd.Close()

	buf := make([]byte, freeTableSize)
	if _, err := io.ReadFull(fd, buf); err != nil {
		return freeTable{}, nil
	}
	return decodeFreeTable(buf), nil
}
