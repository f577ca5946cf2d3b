package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncryptedData is the on-the-wire shape EncryptingCodec produces:
// a nonce plus the AES-GCM sealed bytes (which already include the
// authentication tag). MarshalBinary/UnmarshalBinary use a plain
// length-prefixed layout rather than a schema codec, for the same
// reason filestore's object records do: the shape is small, fixed in
// spirit, and not worth dragging a serialization library into a leaf
// package for.
type EncryptedData struct {
	Nonce         []byte
	EncryptedData []byte
}

func (ed *EncryptedData) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	writeLenPrefixed(&buf, ed.Nonce)
	writeLenPrefixed(&buf, ed.EncryptedData)
	return buf.Bytes(), nil
}

func (ed *EncryptedData) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	nonce, err := readLenPrefixed(r)
	if err != nil {
		return err
	}
	enc, err := readLenPrefixed(r)
	if err != nil {
		return err
	}
	ed.Nonce = nonce
	ed.EncryptedData = enc
	return nil
}

// CompressionType records which (if any) compression was applied to
// a CompressedData's RawData.
type CompressionType byte

const (
	CompressionType_UNSET CompressionType = iota

	// CompressionType_PLAIN means RawData was stored as-is, either
	// because compression made it no smaller or because the caller
	// chose not to compress.
	CompressionType_PLAIN

	// CompressionType_LZ4 means RawData is an lz4 block-compressed
	// payload.
	CompressionType_LZ4
)

// CompressedData is the on-the-wire shape CompressingCodec produces.
type CompressedData struct {
	CompressionType CompressionType
	RawData         []byte
}

func (cd *CompressedData) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(cd.CompressionType))
	writeLenPrefixed(&buf, cd.RawData)
	return buf.Bytes(), nil
}

func (cd *CompressedData) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("codec: CompressedData: truncated header")
	}
	cd.CompressionType = CompressionType(data[0])
	r := bytes.NewReader(data[1:])
	raw, err := readLenPrefixed(r)
	if err != nil {
		return err
	}
	cd.RawData = raw
	return nil
}

func writeLenPrefixed(buf *bytes.Buffer, p []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p)))
	buf.Write(lenBuf[:])
	buf.Write(p)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return nil, fmt.Errorf("codec: truncated length prefix: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	p := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(p); err != nil {
			return nil, fmt.Errorf("codec: truncated payload: %w", err)
		}
	}
	return p, nil
}
