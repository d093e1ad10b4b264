package capture

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket/layers"

	"github.com/hollowlog/magpie/business/entity"
)

const (
	ethernetHeaderSize     = 14
	ethernetPositionType   = 12
	ipv4MinFrameSize       = 34
	ipv4PositionIHL        = 14
	ipv4PositionTTL        = 22
	ipv4PositionProtocol   = 23
	ipv4PositionSrc        = 26
	ipv4PositionDst        = 30
	arpMinFrameSize        = 42
	arpPositionOpcode      = 20
	arpPositionSenderIP    = 28
	arpPositionTargetIP    = 38
	ipv6MinFrameSize       = 54
	ipv6PositionNextHeader = 20
	ipv6PositionSrc        = 22
	ipv6PositionDst        = 38
	tcpPositionFlags       = 13
	tcpMinSummarySize      = 14
	udpMinSummarySize      = 4
	icmpMinSummarySize     = 2
	lowTTLThreshold        = 10
)

const (
	tcpFlagFIN = 0x01
	tcpFlagSYN = 0x02
	tcpFlagRST = 0x04
	tcpFlagPSH = 0x08
	tcpFlagACK = 0x10
)

var (
	dissectByteOrder = binary.BigEndian

	tcpServices = map[uint16]string{
		80:  "HTTP",
		443: "HTTPS",
		22:  "SSH",
		53:  "DNS-over-TCP",
	}
	udpServices = map[uint16]string{
		53:  "DNS",
		67:  "DHCP",
		68:  "DHCP",
		123: "NTP",
		500: "IKE",
	}
)

// Dissect classifies the L2-L4 headers of one Ethernet frame.
// Best-effort: insufficient length at any stage leaves the matching
// variant nil, it never returns an error.
func Dissect(frame []byte) entity.ProtocolSummary {
	var s entity.ProtocolSummary

	if len(frame) < ethernetHeaderSize {
		return s
	}

	s.EtherType = dissectByteOrder.Uint16(frame[ethernetPositionType:])

	switch layers.EthernetType(s.EtherType) {
	case layers.EthernetTypeIPv4:
		dissectIPv4(frame, &s)
	case layers.EthernetTypeARP:
		dissectARP(frame, &s)
	case layers.EthernetTypeIPv6:
		dissectIPv6(frame, &s)
	}

	return s
}

func dissectIPv4(frame []byte, s *entity.ProtocolSummary) {
	if len(frame) < ipv4MinFrameSize {
		return
	}

	ihl := int(frame[ipv4PositionIHL]&0x0F) * 4

	s.IPv4 = &entity.IPv4Summary{
		Src:      net.IP(frame[ipv4PositionSrc : ipv4PositionSrc+4]).String(),
		Dst:      net.IP(frame[ipv4PositionDst : ipv4PositionDst+4]).String(),
		TTL:      frame[ipv4PositionTTL],
		Protocol: frame[ipv4PositionProtocol],
	}
	s.LowTTL = s.IPv4.TTL < lowTTLThreshold

	l4 := ethernetHeaderSize + ihl

	switch layers.IPProtocol(s.IPv4.Protocol) {
	case layers.IPProtocolTCP:
		if len(frame) >= l4+tcpMinSummarySize {
			s.TCP = dissectTCP(frame[l4:])
		}
	case layers.IPProtocolUDP:
		if len(frame) >= l4+udpMinSummarySize {
			srcPort := dissectByteOrder.Uint16(frame[l4:])
			dstPort := dissectByteOrder.Uint16(frame[l4+2:])
			s.UDP = &entity.UDPSummary{
				SrcPort: srcPort,
				DstPort: dstPort,
				Service: serviceName(udpServices, srcPort, dstPort),
			}
		}
	case layers.IPProtocolICMPv4:
		if len(frame) >= l4+icmpMinSummarySize {
			s.ICMP = &entity.ICMPSummary{
				Type: frame[l4],
				Code: frame[l4+1],
			}
			s.ICMP.Name = icmpName(s.ICMP.Type, s.ICMP.Code)
		}
	}
}

func dissectTCP(tcp []byte) *entity.TCPSummary {
	srcPort := dissectByteOrder.Uint16(tcp)
	dstPort := dissectByteOrder.Uint16(tcp[2:])

	var flags []string
	b := tcp[tcpPositionFlags]
	if b&tcpFlagSYN != 0 {
		flags = append(flags, "SYN")
	}
	if b&tcpFlagACK != 0 {
		flags = append(flags, "ACK")
	}
	if b&tcpFlagFIN != 0 {
		flags = append(flags, "FIN")
	}
	if b&tcpFlagRST != 0 {
		flags = append(flags, "RST")
	}
	if b&tcpFlagPSH != 0 {
		flags = append(flags, "PSH")
	}

	return &entity.TCPSummary{
		SrcPort: srcPort,
		DstPort: dstPort,
		Flags:   flags,
		Service: serviceName(tcpServices, srcPort, dstPort),
	}
}

func dissectARP(frame []byte, s *entity.ProtocolSummary) {
	if len(frame) < arpMinFrameSize {
		return
	}

	s.ARP = &entity.ARPSummary{
		Op:       dissectByteOrder.Uint16(frame[arpPositionOpcode:]),
		SenderIP: net.IP(frame[arpPositionSenderIP : arpPositionSenderIP+4]).String(),
		TargetIP: net.IP(frame[arpPositionTargetIP : arpPositionTargetIP+4]).String(),
	}
}

func dissectIPv6(frame []byte, s *entity.ProtocolSummary) {
	if len(frame) < ipv6MinFrameSize {
		return
	}

	s.IPv6 = &entity.IPv6Summary{
		Src:        ipv6String(frame[ipv6PositionSrc : ipv6PositionSrc+16]),
		Dst:        ipv6String(frame[ipv6PositionDst : ipv6PositionDst+16]),
		NextHeader: frame[ipv6PositionNextHeader],
	}
}

// ipv6String renders eight colon-separated 4-hex-digit groups, without
// zero-run compression
func ipv6String(addr []byte) string {
	groups := make([]string, 8)
	for i := range groups {
		groups[i] = fmt.Sprintf("%04x", dissectByteOrder.Uint16(addr[i*2:]))
	}
	return strings.Join(groups, ":")
}

func icmpName(typ, code uint8) string {
	switch typ {
	case 0:
		return "Echo Reply"
	case 8:
		return "Echo Request"
	case 3:
		return fmt.Sprintf("Destination Unreachable (code %d)", code)
	case 11:
		return "Time Exceeded"
	}
	return fmt.Sprintf("Type %d Code %d", typ, code)
}

func serviceName(services map[uint16]string, srcPort, dstPort uint16) string {
	if name, ok := services[dstPort]; ok {
		return name
	}
	if name, ok := services[srcPort]; ok {
		return name
	}
	return ""
}
