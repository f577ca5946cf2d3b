package filestore

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

func datPath(root string, serviceID, fileID uint64) string {
	return fmt.Sprintf("%s/%d_%d.dat", root, serviceID, fileID)
}

func tblPath(root string, serviceID, fileID uint64) string {
	return fmt.Sprintf("%s/%d_%d.tbl", root, serviceID, fileID)
}

func encodeObjectHeader(hdr objectHeader) []byte {
	buf := make([]byte, objectHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(hdr.Handle))
	binary.LittleEndian.PutUint64(buf[4:12], hdr.Sid)
	binary.LittleEndian.PutUint32(buf[12:16], hdr.Size)
	return buf
}

func decodeObjectHeader(buf []byte) objectHeader {
	return objectHeader{
		Handle: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Sid:    binary.LittleEndian.Uint64(buf[4:12]),
		Size:   binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// writeRecord appends one framed object record --
// [u32 object_size][objectHeader][payload] -- to fd, which must
// already be positioned where the record belongs.
func writeRecord(fd *os.File, hdr objectHeader, payload []byte) error {
	objectSize := uint32(objectHeaderSize + len(payload))
	var sizeBuf [4]byte
	binary.LittleEndian.PutUint32(sizeBuf[:], objectSize)

	if _, err := fd.Write(sizeBuf[:]); err != nil {
		return err
	}
	if _, err := fd.Write(encodeObjectHeader(hdr)); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := fd.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// readRecord reads one framed record starting at fd's current
// position and returns its header and payload.
func readRecord(fd *os.File) (objectHeader, []byte, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(fd, sizeBuf[:]); err != nil {
		return objectHeader{}, nil, err
	}
	objectSize := binary.LittleEndian.Uint32(sizeBuf[:])
	if objectSize < objectHeaderSize {
		return objectHeader{}, nil, fmt.Errorf("filestore: corrupt record size %d", objectSize)
	}

	rest := make([]byte, objectSize)
	if _, err := io.ReadFull(fd, rest); err != nil {
		return objectHeader{}, nil, err
	}
	hdr := decodeObjectHeader(rest[:objectHeaderSize])
	payload := rest[objectHeaderSize:]
	return hdr, payload, nil
}

// skipRecord advances fd past one framed record without reading its
// payload into memory, used while walking forward to a known offset.
func skipRecord(fd *os.File) error {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(fd, sizeBuf[:]); err != nil {
		return err
	}
	objectSize := int64(binary.LittleEndian.Uint32(sizeBuf[:]))
	_, err := fd.Seek(objectSize, io.SeekCurrent)
	return err
}

// resyncToOffset seeks fd to the start of the offset-th record in its
// chapter by walking forward from the beginning, skipping whole
// records. This is the recovery path the original store takes after
// a write or read error leaves a chapter file at an indeterminate
// position: rather than trusting any previously tracked byte offset,
// it re-derives the right position by counting complete records from
// the top of the file.
func resyncToOffset(fd *os.File, offset uint64) error {
	if _, err := fd.Seek(0, io.SeekStart); err != nil {
		return err
	}
	for i := uint64(0); i < offset; i++ {
		if err := skipRecord(fd); err != nil {
			return err
		}
	}
	return nil
}
