// Package wire reads and writes the little-endian primitives that make
// up an evaluation network parameter file: fixed-width scalars, raw
// weight/bias slices, and LEB128-compressed integer arrays.
//
// It has no dependency on the nnue package itself so that both the
// top-level network loader and the layers package (which the network
// depends on) can share one decoder instead of keeping duplicate copies
// around to dodge an import cycle.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Alignment is the byte width weight rows are padded to so that a SIMD
// kernel is always allowed to read past the last logical element.
const Alignment = 32

// PadTo rounds n up to the next multiple of align.
func PadTo(n, align int) int {
	return (n + align - 1) / align * align
}

// ReadUint32 reads one little-endian uint32, used for version tags and
// section hashes in the file header.
func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// WriteUint32 writes one little-endian uint32.
func WriteUint32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

// ReadInt8s fills dst with raw int8 weight bytes.
func ReadInt8s(r io.Reader, dst []int8) error {
	return binary.Read(r, binary.LittleEndian, dst)
}

// ReadUint8s fills dst with raw uint8 bytes.
func ReadUint8s(r io.Reader, dst []uint8) error {
	return binary.Read(r, binary.LittleEndian, dst)
}

// ReadInt16s fills dst with little-endian int16 values.
func ReadInt16s(r io.Reader, dst []int16) error {
	return binary.Read(r, binary.LittleEndian, dst)
}

// ReadInt32s fills dst with little-endian int32 values.
func ReadInt32s(r io.Reader, dst []int32) error {
	return binary.Read(r, binary.LittleEndian, dst)
}

const leb128Magic = "COMPRESSED_LEB128"

// ReadLEB128Int16s decodes len(dst) signed, LEB128-compressed int16
// values prefixed by the magic marker and an encoded byte count.
func ReadLEB128Int16s(r io.Reader, dst []int16) error { return readLEB128(r, dst) }

// ReadLEB128Int32s decodes len(dst) signed, LEB128-compressed int32
// values prefixed by the magic marker and an encoded byte count.
func ReadLEB128Int32s(r io.Reader, dst []int32) error { return readLEB128(r, dst) }

// WriteLEB128Int16s LEB128-encodes values, preceded by the magic marker
// and the total encoded byte count.
func WriteLEB128Int16s(w io.Writer, values []int16) error { return writeLEB128(w, values) }

// WriteLEB128Int32s LEB128-encodes values, preceded by the magic marker
// and the total encoded byte count.
func WriteLEB128Int32s(w io.Writer, values []int32) error { return writeLEB128(w, values) }

func readLEB128[T int16 | int32](r io.Reader, out []T) error {
	magic := make([]byte, len(leb128Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("leb128: read magic: %w", err)
	}
	if string(magic) != leb128Magic {
		return fmt.Errorf("leb128: bad magic %q, want %q", magic, leb128Magic)
	}

	bytesLeft, err := ReadUint32(r)
	if err != nil {
		return fmt.Errorf("leb128: read byte count: %w", err)
	}

	const chunkSize = 4096
	chunk := make([]byte, chunkSize)
	pos := uint32(chunkSize) // forces a fill on the first byte

	for i := range out {
		var value T
		var shift uint

		for {
			if pos == chunkSize {
				n := bytesLeft
				if n > chunkSize {
					n = chunkSize
				}
				if _, err := io.ReadFull(r, chunk[:n]); err != nil {
					return fmt.Errorf("leb128: read payload: %w", err)
				}
				pos = 0
			}

			b := chunk[pos]
			pos++
			bytesLeft--

			value |= T(b&0x7f) << shift
			shift += 7

			if b&0x80 == 0 {
				width := uint(8 * byteWidth(value))
				if shift < width && b&0x40 != 0 {
					value |= ^T(0) << shift
				}
				break
			}
			if shift >= uint(8*byteWidth(value)) {
				break
			}
		}

		out[i] = value
	}

	if bytesLeft != 0 {
		return fmt.Errorf("leb128: %d unconsumed bytes", bytesLeft)
	}
	return nil
}

func writeLEB128[T int16 | int32](w io.Writer, values []T) error {
	if _, err := w.Write([]byte(leb128Magic)); err != nil {
		return fmt.Errorf("leb128: write magic: %w", err)
	}

	var byteCount uint32
	for _, value := range values {
		v := value
		for {
			b := byte(v & 0x7f)
			v >>= 7
			byteCount++
			if (b&0x40 == 0 && v == 0) || (b&0x40 != 0 && v == -1) {
				break
			}
		}
	}
	if err := WriteUint32(w, byteCount); err != nil {
		return fmt.Errorf("leb128: write byte count: %w", err)
	}

	const chunkSize = 4096
	buf := make([]byte, 0, chunkSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		_, err := w.Write(buf)
		buf = buf[:0]
		return err
	}

	for _, value := range values {
		v := value
		for {
			b := byte(v & 0x7f)
			v >>= 7
			done := (b&0x40 == 0 && v == 0) || (b&0x40 != 0 && v == -1)
			if done {
				buf = append(buf, b)
			} else {
				buf = append(buf, b|0x80)
			}
			if len(buf) == chunkSize {
				if err := flush(); err != nil {
					return err
				}
			}
			if done {
				break
			}
		}
	}
	return flush()
}

// byteWidth returns the width in bytes of an integer of type T, without
// importing unsafe.
func byteWidth[T any](v T) int {
	switch any(v).(type) {
	case int16, uint16:
		return 2
	case int32, uint32:
		return 4
	default:
		return 8
	}
}
