package capture

import (
	"fmt"
	"strings"

	"github.com/google/gopacket/layers"

	"github.com/hollowlog/magpie/business/entity"
)

const (
	// DefaultRenderedPacketBound caps the per-packet lines of one summary
	DefaultRenderedPacketBound = 50

	summaryTimeFormat = "2006-01-02T15:04:05.000Z"
)

// Summarizer builds aggregate capture metadata and a bounded
// human-readable per-packet summary
type Summarizer struct {
	cfg *Config
}

type Config struct {
	MaxRenderedPackets int
}

func NewSummarizer(cfg *Config) *Summarizer {
	if cfg.MaxRenderedPackets <= 0 {
		cfg.MaxRenderedPackets = DefaultRenderedPacketBound
	}
	return &Summarizer{cfg: cfg}
}

// Summarize drives a full pass over the capture for the aggregate
// metadata, then re-drives the reader to render at most
// MaxRenderedPackets frames
func (s *Summarizer) Summarize(filename string, buf []byte) (*entity.CaptureMetadata, string, error) {
	r, err := Open(buf)
	if err != nil {
		return nil, "", err
	}

	meta := &entity.CaptureMetadata{
		Filename:      filename,
		Format:        r.Format(),
		Version:       r.Version(),
		SnapLen:       r.SnapLen(),
		LinkType:      r.LinkType(),
		LinkTypeName:  layers.LinkType(r.LinkType()).String(),
		FileSizeBytes: len(buf),
	}

	cursor := r.Frames()
	for cursor.Next() {
		meta.PacketCount++
	}

	return meta, s.render(r, meta), nil
}

func (s *Summarizer) render(r *Reader, meta *entity.CaptureMetadata) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Capture format: %s %s\n", meta.Format, meta.Version)
	fmt.Fprintf(&b, "Link type: %s, snap length: %d\n", meta.LinkTypeName, meta.SnapLen)
	fmt.Fprintf(&b, "Total packets: %d\n", meta.PacketCount)
	fmt.Fprintf(&b, "File size: %d bytes\n\n", meta.FileSizeBytes)

	rendered := 0
	cursor := r.Frames()
	for cursor.Next() && rendered < s.cfg.MaxRenderedPackets {
		rendered++
		rec := cursor.Frame()
		fmt.Fprintf(&b, "#%d %s len %d/%d %s\n",
			rendered,
			rec.Time().Format(summaryTimeFormat),
			rec.CapturedLength, rec.OriginalLength,
			describe(Dissect(cursor.Payload())))
	}

	if remaining := meta.PacketCount - rendered; remaining > 0 {
		coverage := float64(rendered) / float64(meta.PacketCount) * 100
		fmt.Fprintf(&b, "... %d more packets, %.1f%% coverage\n", remaining, coverage)
	}

	return b.String()
}

// Profile collects per-frame series for chart rendering
func (s *Summarizer) Profile(buf []byte) (*entity.CaptureProfile, error) {
	r, err := Open(buf)
	if err != nil {
		return nil, err
	}

	profile := &entity.CaptureProfile{
		Protocols: make(map[string]int),
	}

	cursor := r.Frames()
	for cursor.Next() {
		rec := cursor.Frame()
		profile.Protocols[protocolLabel(Dissect(cursor.Payload()))]++
		profile.Lengths = append(profile.Lengths, int(rec.CapturedLength))
		profile.Times = append(profile.Times, rec.Time())
	}

	return profile, nil
}

func describe(s entity.ProtocolSummary) string {
	switch {
	case s.IPv4 != nil:
		return describeIPv4(s)
	case s.ARP != nil:
		op := "Request"
		if s.ARP.Op == 2 {
			op = "Reply"
		}
		return fmt.Sprintf("ARP %s %s -> %s", op, s.ARP.SenderIP, s.ARP.TargetIP)
	case s.IPv6 != nil:
		return fmt.Sprintf("IPv6 %s %s -> %s", ipv6NextHeaderLabel(s.IPv6.NextHeader), s.IPv6.Src, s.IPv6.Dst)
	case s.EtherType != 0:
		return fmt.Sprintf("EtherType 0x%04X", s.EtherType)
	}
	return "unknown frame"
}

func describeIPv4(s entity.ProtocolSummary) string {
	var b strings.Builder

	switch {
	case s.TCP != nil:
		fmt.Fprintf(&b, "TCP %s:%d -> %s:%d", s.IPv4.Src, s.TCP.SrcPort, s.IPv4.Dst, s.TCP.DstPort)
		if len(s.TCP.Flags) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(s.TCP.Flags, ","))
		}
		if s.TCP.Service != "" {
			fmt.Fprintf(&b, " (%s)", s.TCP.Service)
		}
	case s.UDP != nil:
		fmt.Fprintf(&b, "UDP %s:%d -> %s:%d", s.IPv4.Src, s.UDP.SrcPort, s.IPv4.Dst, s.UDP.DstPort)
		if s.UDP.Service != "" {
			fmt.Fprintf(&b, " (%s)", s.UDP.Service)
		}
	case s.ICMP != nil:
		fmt.Fprintf(&b, "ICMP %s %s -> %s", s.ICMP.Name, s.IPv4.Src, s.IPv4.Dst)
	default:
		fmt.Fprintf(&b, "IPv4 %s %s -> %s", layers.IPProtocol(s.IPv4.Protocol), s.IPv4.Src, s.IPv4.Dst)
	}

	if s.LowTTL {
		fmt.Fprintf(&b, " low TTL %d", s.IPv4.TTL)
	}

	return b.String()
}

func ipv6NextHeaderLabel(nextHeader uint8) string {
	switch layers.IPProtocol(nextHeader) {
	case layers.IPProtocolTCP:
		return "TCP"
	case layers.IPProtocolUDP:
		return "UDP"
	case layers.IPProtocolICMPv6:
		return "ICMPv6"
	}
	return fmt.Sprintf("next header %d", nextHeader)
}

func protocolLabel(s entity.ProtocolSummary) string {
	switch {
	case s.TCP != nil:
		return "TCP"
	case s.UDP != nil:
		return "UDP"
	case s.ICMP != nil:
		return "ICMP"
	case s.IPv4 != nil:
		return layers.IPProtocol(s.IPv4.Protocol).String()
	case s.ARP != nil:
		return "ARP"
	case s.IPv6 != nil:
		return ipv6NextHeaderLabel(s.IPv6.NextHeader)
	}
	return "other"
}
