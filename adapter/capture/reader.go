// Package capture frames and classifies raw packet-capture buffers.
package capture

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	"github.com/hollowlog/magpie/business/entity"
)

const (
	magicPcapBigEndian    = 0xA1B2C3D4
	magicPcapLittleEndian = 0xD4C3B2A1
	magicPcapNG           = 0x0A0D0D0A

	globalHeaderSize = 24
	recordHeaderSize = 16

	headerPositionVersionMajor = 4
	headerPositionVersionMinor = 6
	headerPositionSnapLen      = 16
	headerPositionLinkType     = 20

	recordPositionSeconds  = 0
	recordPositionMicros   = 4
	recordPositionCaptured = 8
	recordPositionOriginal = 12

	// captured lengths above this are treated as corrupt trailing data
	maxSaneCapturedLength = 65535

	blockTypePacket         = 0x00000002
	blockTypeSimplePacket   = 0x00000003
	blockTypeEnhancedPacket = 0x00000006
	blockTypeSectionHeader  = 0x0A0D0D0A

	blockMinLength  = 12
	blockHeaderSize = 8

	packetBlockPositionTimestampHigh = 4
	packetBlockPositionTimestampLow  = 8
	packetBlockPositionCaptured      = 12
	packetBlockPositionOriginal      = 16
	packetBlockHeaderSize            = 20

	sectionHeaderPositionVersionMajor = 4
	sectionHeaderPositionVersionMinor = 6

	defaultSnapLen  = 65535
	defaultLinkType = uint32(layers.LinkTypeEthernet)
)

// Reader detects the container format of a capture buffer and mints
// cursors over its frame records. The buffer stays owned by the caller
// for the lifetime of the reader and all of its cursors.
type Reader struct {
	buf          []byte
	byteOrder    binary.ByteOrder
	format       entity.CaptureFormat
	versionMajor uint16
	versionMinor uint16
	snapLen      uint32
	linkType     uint32
}

// Open parses the container-level header of a capture buffer
func Open(buf []byte) (*Reader, error) {
	if len(buf) < globalHeaderSize {
		return nil, errors.Wrapf(entity.ErrCaptureTooSmall, "%d bytes", len(buf))
	}

	r := &Reader{buf: buf}

	switch binary.BigEndian.Uint32(buf) {
	case magicPcapBigEndian:
		r.byteOrder = binary.BigEndian
		r.openPcap()
	case magicPcapLittleEndian:
		r.byteOrder = binary.LittleEndian
		r.openPcap()
	case magicPcapNG:
		r.byteOrder = binary.LittleEndian
		r.openPcapNG()
	default:
		return nil, errors.Wrapf(entity.ErrUnknownMagic, "0x%08X", binary.BigEndian.Uint32(buf))
	}

	return r, nil
}

func (r *Reader) openPcap() {
	r.format = entity.CaptureFormatPcap
	r.versionMajor = r.byteOrder.Uint16(r.buf[headerPositionVersionMajor:])
	r.versionMinor = r.byteOrder.Uint16(r.buf[headerPositionVersionMinor:])
	r.snapLen = r.byteOrder.Uint32(r.buf[headerPositionSnapLen:])
	r.linkType = r.byteOrder.Uint32(r.buf[headerPositionLinkType:])
}

func (r *Reader) openPcapNG() {
	r.format = entity.CaptureFormatPcapNG
	r.snapLen = defaultSnapLen
	r.linkType = defaultLinkType

	// version fields of the leading Section Header Block, opportunistic
	if len(r.buf) >= blockHeaderSize+8 {
		body := r.buf[blockHeaderSize:]
		r.versionMajor = r.byteOrder.Uint16(body[sectionHeaderPositionVersionMajor:])
		r.versionMinor = r.byteOrder.Uint16(body[sectionHeaderPositionVersionMinor:])
	}
}

func (r *Reader) Format() entity.CaptureFormat { return r.format }
func (r *Reader) SnapLen() uint32              { return r.snapLen }
func (r *Reader) LinkType() uint32             { return r.linkType }

func (r *Reader) Version() string {
	return versionString(r.versionMajor, r.versionMinor)
}

// Frames mints a lazy, finite, non-restartable cursor over the frame
// records of the buffer. The reader may mint any number of cursors.
func (r *Reader) Frames() *Cursor {
	c := &Cursor{r: r}
	if r.format == entity.CaptureFormatPcap {
		c.offset = globalHeaderSize
	}
	return c
}

// Cursor walks the capture buffer one frame record at a time. Records
// are views into the shared buffer, valid until the next call to Next.
type Cursor struct {
	r      *Reader
	offset int
	rec    entity.FrameRecord
	done   bool
}

// Next advances to the next frame record. Truncated or malformed
// trailing data ends iteration, it is never an error: metadata about
// the frames already read must not be lost.
func (c *Cursor) Next() bool {
	if c.done {
		return false
	}
	if c.r.format == entity.CaptureFormatPcap {
		return c.nextPcap()
	}
	return c.nextPcapNG()
}

// Frame returns the current record; valid only after Next returned true
func (c *Cursor) Frame() *entity.FrameRecord {
	return &c.rec
}

// Payload returns the captured bytes of the current record as a view
// into the shared buffer
func (c *Cursor) Payload() []byte {
	return c.r.buf[c.rec.PayloadOffset : c.rec.PayloadOffset+c.rec.PayloadLength]
}

func (c *Cursor) nextPcap() bool {
	buf, bo := c.r.buf, c.r.byteOrder

	if len(buf)-c.offset < recordHeaderSize {
		c.done = true
		return false
	}

	seconds := bo.Uint32(buf[c.offset+recordPositionSeconds:])
	micros := bo.Uint32(buf[c.offset+recordPositionMicros:])
	captured := bo.Uint32(buf[c.offset+recordPositionCaptured:])
	original := bo.Uint32(buf[c.offset+recordPositionOriginal:])

	if captured > maxSaneCapturedLength {
		c.done = true
		return false
	}
	if c.offset+recordHeaderSize+int(captured) > len(buf) {
		c.done = true
		return false
	}

	c.rec = entity.FrameRecord{
		TimestampMicros: uint64(seconds)*1_000_000 + uint64(micros),
		CapturedLength:  captured,
		OriginalLength:  original,
		PayloadOffset:   c.offset + recordHeaderSize,
		PayloadLength:   int(captured),
	}
	c.offset += recordHeaderSize + int(captured)

	return true
}

func (c *Cursor) nextPcapNG() bool {
	buf, bo := c.r.buf, c.r.byteOrder

	for {
		if len(buf)-c.offset < blockMinLength {
			c.done = true
			return false
		}

		blockType := bo.Uint32(buf[c.offset:])
		totalLength := int(bo.Uint32(buf[c.offset+4:]))

		if totalLength < blockMinLength || c.offset+totalLength > len(buf) {
			c.done = true
			return false
		}

		body := buf[c.offset+blockHeaderSize : c.offset+totalLength-4]
		bodyOffset := c.offset + blockHeaderSize
		c.offset += totalLength

		switch blockType {
		case blockTypeEnhancedPacket, blockTypePacket:
			c.rec = c.packetBlockRecord(body, bodyOffset)
			return true
		case blockTypeSimplePacket:
			c.rec = c.simplePacketBlockRecord(body, bodyOffset)
			return true
		}
	}
}

// packetBlockRecord decodes an Enhanced Packet Block or the obsolete
// Packet Block, which share the 20-byte record prefix
func (c *Cursor) packetBlockRecord(body []byte, bodyOffset int) entity.FrameRecord {
	if len(body) < packetBlockHeaderSize {
		// still one frame for packetCount purposes
		return entity.FrameRecord{PayloadOffset: bodyOffset}
	}

	bo := c.r.byteOrder
	high := bo.Uint32(body[packetBlockPositionTimestampHigh:])
	low := bo.Uint32(body[packetBlockPositionTimestampLow:])
	captured := bo.Uint32(body[packetBlockPositionCaptured:])
	original := bo.Uint32(body[packetBlockPositionOriginal:])

	payloadLength := int(captured)
	if payloadLength > len(body)-packetBlockHeaderSize {
		payloadLength = len(body) - packetBlockHeaderSize
	}

	return entity.FrameRecord{
		TimestampMicros: uint64(high)<<32 | uint64(low),
		CapturedLength:  captured,
		OriginalLength:  original,
		PayloadOffset:   bodyOffset + packetBlockHeaderSize,
		PayloadLength:   payloadLength,
	}
}

func (c *Cursor) simplePacketBlockRecord(body []byte, bodyOffset int) entity.FrameRecord {
	if len(body) < 4 {
		return entity.FrameRecord{PayloadOffset: bodyOffset}
	}

	original := c.r.byteOrder.Uint32(body)
	captured := original
	if captured > c.r.snapLen {
		captured = c.r.snapLen
	}
	if int(captured) > len(body)-4 {
		captured = uint32(len(body) - 4)
	}

	return entity.FrameRecord{
		CapturedLength: captured,
		OriginalLength: original,
		PayloadOffset:  bodyOffset + 4,
		PayloadLength:  int(captured),
	}
}

func versionString(major, minor uint16) string {
	return fmt.Sprintf("%d.%d", major, minor)
}
