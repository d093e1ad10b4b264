package entity

import (
	"fmt"
	"time"
)

type CaptureFormat string

const (
	CaptureFormatPcap   CaptureFormat = "pcap"
	CaptureFormatPcapNG CaptureFormat = "pcapng"
)

// FrameRecord one captured frame, a transient view into the shared
// capture buffer; PayloadOffset/PayloadLength address the buffer given
// to the reader, no bytes are copied
type FrameRecord struct {
	TimestampMicros uint64
	CapturedLength  uint32
	OriginalLength  uint32
	PayloadOffset   int
	PayloadLength   int
}

// Time converts the microsecond timestamp to UTC wall time
func (r *FrameRecord) Time() time.Time {
	return time.UnixMicro(int64(r.TimestampMicros)).UTC()
}

// ProtocolSummary best-effort L2-L4 classification of one frame.
// Nil variant pointers mean the layer could not be identified.
type ProtocolSummary struct {
	EtherType uint16
	IPv4      *IPv4Summary
	IPv6      *IPv6Summary
	ARP       *ARPSummary
	TCP       *TCPSummary
	UDP       *UDPSummary
	ICMP      *ICMPSummary
	LowTTL    bool
}

type IPv4Summary struct {
	Src      string
	Dst      string
	TTL      uint8
	Protocol uint8
}

type IPv6Summary struct {
	Src        string
	Dst        string
	NextHeader uint8
}

type ARPSummary struct {
	Op       uint16
	SenderIP string
	TargetIP string
}

type TCPSummary struct {
	SrcPort uint16
	DstPort uint16
	Flags   []string
	Service string
}

type UDPSummary struct {
	SrcPort uint16
	DstPort uint16
	Service string
}

type ICMPSummary struct {
	Type uint8
	Code uint8
	Name string
}

// CaptureMetadata aggregate metadata of one parsed capture file
type CaptureMetadata struct {
	Filename      string        `json:"filename"`
	Format        CaptureFormat `json:"format"`
	Version       string        `json:"version"`
	SnapLen       uint32        `json:"snapLen"`
	LinkType      uint32        `json:"linkType"`
	LinkTypeName  string        `json:"linkTypeName"`
	PacketCount   int           `json:"packetCount"`
	FileSizeBytes int           `json:"fileSizeBytes"`
}

// CaptureProfile per-frame series used for chart rendering
type CaptureProfile struct {
	Protocols map[string]int
	Lengths   []int
	Times     []time.Time
}

func (m *CaptureMetadata) String() string {
	return fmt.Sprintf("%s %s, link %s, snaplen %d, %d packets, %d bytes",
		m.Format, m.Version, m.LinkTypeName, m.SnapLen, m.PacketCount, m.FileSizeBytes)
}
