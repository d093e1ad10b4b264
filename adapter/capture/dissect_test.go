package capture

import (
	"net"
	"strings"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

var (
	testSrcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	testDstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB}
	testSrcIP  = net.IP{192, 168, 1, 10}
	testDstIP  = net.IP{10, 0, 0, 1}
)

func serializeFrame(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("failed to serialize frame: %v", err)
	}
	return buf.Bytes()
}

func tcpFrame(t *testing.T, srcPort, dstPort uint16, syn, ack bool) []byte {
	t.Helper()
	return serializeFrame(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: testSrcIP, DstIP: testDstIP},
		&layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), SYN: syn, ACK: ack},
	)
}

func TestDissectTCP(t *testing.T) {
	s := Dissect(tcpFrame(t, 50123, 443, true, false))

	if s.IPv4 == nil {
		t.Fatal("expected IPv4 summary")
	}
	if s.IPv4.Src != "192.168.1.10" || s.IPv4.Dst != "10.0.0.1" {
		t.Errorf("addresses = %s -> %s", s.IPv4.Src, s.IPv4.Dst)
	}
	if s.IPv4.TTL != 64 || s.LowTTL {
		t.Errorf("TTL = %d, lowTTL = %v", s.IPv4.TTL, s.LowTTL)
	}
	if s.TCP == nil {
		t.Fatal("expected TCP summary")
	}
	if s.TCP.SrcPort != 50123 || s.TCP.DstPort != 443 {
		t.Errorf("ports = %d -> %d", s.TCP.SrcPort, s.TCP.DstPort)
	}
	if s.TCP.Service != "HTTPS" {
		t.Errorf("service = %q, expected HTTPS", s.TCP.Service)
	}
	if len(s.TCP.Flags) != 1 || s.TCP.Flags[0] != "SYN" {
		t.Errorf("flags = %v, expected [SYN]", s.TCP.Flags)
	}
}

func TestDissectTCPFlags(t *testing.T) {
	s := Dissect(tcpFrame(t, 22, 40000, true, true))
	if s.TCP == nil {
		t.Fatal("expected TCP summary")
	}
	if strings.Join(s.TCP.Flags, ",") != "SYN,ACK" {
		t.Errorf("flags = %v, expected [SYN ACK]", s.TCP.Flags)
	}
	if s.TCP.Service != "SSH" {
		t.Errorf("service = %q, expected SSH from source port", s.TCP.Service)
	}
}

func TestDissectUDP(t *testing.T) {
	frame := serializeFrame(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: testSrcIP, DstIP: testDstIP},
		&layers.UDP{SrcPort: 53125, DstPort: 53},
	)

	s := Dissect(frame)
	if s.UDP == nil {
		t.Fatal("expected UDP summary")
	}
	if s.UDP.DstPort != 53 {
		t.Errorf("dst port = %d, expected 53", s.UDP.DstPort)
	}
	if s.UDP.Service != "DNS" {
		t.Errorf("service = %q, expected DNS", s.UDP.Service)
	}
}

func TestDissectICMPEchoRequest(t *testing.T) {
	frame := serializeFrame(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolICMPv4, SrcIP: testSrcIP, DstIP: testDstIP},
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(8, 0)},
	)

	s := Dissect(frame)
	if s.ICMP == nil {
		t.Fatal("expected ICMP summary")
	}
	if s.ICMP.Type != 8 || s.ICMP.Name != "Echo Request" {
		t.Errorf("type = %d name = %q, expected 8 / Echo Request", s.ICMP.Type, s.ICMP.Name)
	}
}

func TestDissectICMPNames(t *testing.T) {
	data := map[string]struct {
		typ  uint8
		code uint8
		name string
	}{
		"echo reply":    {0, 0, "Echo Reply"},
		"unreachable":   {3, 1, "Destination Unreachable (code 1)"},
		"time exceeded": {11, 0, "Time Exceeded"},
		"generic":       {13, 2, "Type 13 Code 2"},
	}

	for name, d := range data {
		t.Run(name, func(t *testing.T) {
			if got := icmpName(d.typ, d.code); got != d.name {
				t.Errorf("icmpName(%d, %d) = %q, expected %q", d.typ, d.code, got, d.name)
			}
		})
	}
}

func TestDissectLowTTL(t *testing.T) {
	frame := serializeFrame(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{Version: 4, TTL: 3, Protocol: layers.IPProtocolICMPv4, SrcIP: testSrcIP, DstIP: testDstIP},
		&layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(11, 0)},
	)

	s := Dissect(frame)
	if !s.LowTTL {
		t.Error("expected low TTL warning for TTL 3")
	}
}

func TestDissectARP(t *testing.T) {
	frame := serializeFrame(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   testSrcMAC,
			SourceProtAddress: testSrcIP.To4(),
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    testDstIP.To4(),
		},
	)

	s := Dissect(frame)
	if s.ARP == nil {
		t.Fatal("expected ARP summary")
	}
	if s.ARP.Op != 1 {
		t.Errorf("op = %d, expected 1 (request)", s.ARP.Op)
	}
	if s.ARP.SenderIP != "192.168.1.10" || s.ARP.TargetIP != "10.0.0.1" {
		t.Errorf("addresses = %s -> %s", s.ARP.SenderIP, s.ARP.TargetIP)
	}
}

func TestDissectIPv6(t *testing.T) {
	frame := serializeFrame(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv6},
		&layers.IPv6{
			Version:    6,
			NextHeader: layers.IPProtocolTCP,
			HopLimit:   64,
			SrcIP:      net.ParseIP("2001:db8::1"),
			DstIP:      net.ParseIP("fe80::0202:b3ff:fe1e:8329"),
		},
	)

	s := Dissect(frame)
	if s.IPv6 == nil {
		t.Fatal("expected IPv6 summary")
	}
	if s.IPv6.NextHeader != 6 {
		t.Errorf("next header = %d, expected 6", s.IPv6.NextHeader)
	}
	// uncompressed rendering, eight 4-hex-digit groups
	if s.IPv6.Src != "2001:0db8:0000:0000:0000:0000:0000:0001" {
		t.Errorf("src = %s", s.IPv6.Src)
	}
	if s.IPv6.Dst != "fe80:0000:0000:0000:0202:b3ff:fe1e:8329" {
		t.Errorf("dst = %s", s.IPv6.Dst)
	}
}

func TestDissectTruncated(t *testing.T) {
	data := map[string]int{
		"empty":          0,
		"below ethernet": 13,
		"ethernet only":  14,
		"truncated ipv4": 20,
		"one byte short": 33,
	}

	full := tcpFrame(t, 1, 2, false, false)

	for name, size := range data {
		t.Run(name, func(t *testing.T) {
			s := Dissect(full[:size])
			if s.IPv4 != nil || s.TCP != nil || s.UDP != nil || s.ICMP != nil || s.ARP != nil || s.IPv6 != nil {
				t.Error("expected all variants nil on truncated frame")
			}
		})
	}
}

func TestDissectUnknownEtherType(t *testing.T) {
	frame := make([]byte, 18)
	frame[12] = 0x88
	frame[13] = 0xCC // LLDP

	s := Dissect(frame)
	if s.EtherType != 0x88CC {
		t.Errorf("ethertype = 0x%04X, expected 0x88CC", s.EtherType)
	}
	if s.IPv4 != nil || s.IPv6 != nil || s.ARP != nil {
		t.Error("expected no L3 decoding for unknown ethertype")
	}
}
