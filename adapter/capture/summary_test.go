package capture

import (
	"encoding/binary"
	"strconv"
	"strings"
	"testing"

	"github.com/google/gopacket/layers"
)

func TestSummarizeMetadata(t *testing.T) {
	buf := legacyCapture(binary.LittleEndian, tcpFrame(t, 50123, 443, true, false))

	s := NewSummarizer(&Config{})
	meta, summary, err := s.Summarize("wire.pcap", buf)
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}

	if meta.Format != "pcap" || meta.Version != "2.4" {
		t.Errorf("format = %s %s", meta.Format, meta.Version)
	}
	if meta.LinkTypeName != "Ethernet" {
		t.Errorf("link type name = %s, expected Ethernet", meta.LinkTypeName)
	}
	if meta.PacketCount != 1 {
		t.Errorf("packet count = %d, expected 1", meta.PacketCount)
	}
	if meta.FileSizeBytes != len(buf) {
		t.Errorf("file size = %d, expected %d", meta.FileSizeBytes, len(buf))
	}
	if !strings.Contains(summary, "HTTPS") {
		t.Errorf("summary misses the dissector output:\n%s", summary)
	}
	if !strings.Contains(summary, "2023-11-14T22:13:20.000Z") {
		t.Errorf("summary misses the ISO-8601 timestamp:\n%s", summary)
	}
}

// the rendered packet bound is 50; an earlier revision used 20
func TestSummarizeDefaultBound(t *testing.T) {
	if DefaultRenderedPacketBound != 50 {
		t.Fatalf("default rendered packet bound = %d, expected 50", DefaultRenderedPacketBound)
	}

	payloads := make([][]byte, 60)
	for i := range payloads {
		payloads[i] = tcpFrame(t, 40000, 80, false, true)
	}
	buf := legacyCapture(binary.LittleEndian, payloads...)

	s := NewSummarizer(&Config{})
	meta, summary, err := s.Summarize("big.pcap", buf)
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}
	if meta.PacketCount != 60 {
		t.Fatalf("packet count = %d, expected 60", meta.PacketCount)
	}

	rendered := 0
	for _, line := range strings.Split(summary, "\n") {
		if strings.HasPrefix(line, "#") {
			rendered++
		}
	}
	if rendered != 50 {
		t.Errorf("rendered %d per-packet lines, expected 50", rendered)
	}
	if !strings.Contains(summary, "10 more packets") {
		t.Errorf("summary misses the coverage line:\n%s", summary)
	}
	if !strings.Contains(summary, "83.3% coverage") {
		t.Errorf("summary misses the coverage percentage:\n%s", summary)
	}
}

// re-parsing the declared packet count from the rendered summary must
// match the value computed by cursor iteration
func TestSummaryPacketCountRoundTrip(t *testing.T) {
	payloads := make([][]byte, 5)
	for i := range payloads {
		payloads[i] = tcpFrame(t, 12345, 80, true, false)
	}
	buf := legacyCapture(binary.BigEndian, payloads...)

	s := NewSummarizer(&Config{})
	meta, summary, err := s.Summarize("five.pcap", buf)
	if err != nil {
		t.Fatalf("Summarize() failed: %v", err)
	}

	var parsed int
	for _, line := range strings.Split(summary, "\n") {
		if v, ok := strings.CutPrefix(line, "Total packets: "); ok {
			parsed, err = strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				t.Fatalf("failed to re-parse packet count: %v", err)
			}
			break
		}
	}

	if parsed != meta.PacketCount {
		t.Errorf("re-parsed packet count = %d, metadata has %d", parsed, meta.PacketCount)
	}

	r, err := Open(buf)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	direct := 0
	cursor := r.Frames()
	for cursor.Next() {
		direct++
	}
	if parsed != direct {
		t.Errorf("re-parsed packet count = %d, cursor iteration counted %d", parsed, direct)
	}
}

func TestSummarizeInvalidBuffer(t *testing.T) {
	s := NewSummarizer(&Config{})

	if _, _, err := s.Summarize("tiny.pcap", make([]byte, 10)); err == nil {
		t.Error("expected error for undersized buffer")
	}
	if _, _, err := s.Summarize("noise.bin", make([]byte, 64)); err == nil {
		t.Error("expected error for unknown magic")
	}
}

func TestProfile(t *testing.T) {
	udpFrame := serializeFrame(t,
		&layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4},
		&layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: testSrcIP, DstIP: testDstIP},
		&layers.UDP{SrcPort: 5353, DstPort: 53},
	)

	buf := legacyCapture(binary.LittleEndian,
		tcpFrame(t, 50123, 443, true, false),
		tcpFrame(t, 50124, 443, true, false),
		udpFrame,
	)

	s := NewSummarizer(&Config{})
	profile, err := s.Profile(buf)
	if err != nil {
		t.Fatalf("Profile() failed: %v", err)
	}

	if profile.Protocols["TCP"] != 2 {
		t.Errorf("TCP count = %d, expected 2", profile.Protocols["TCP"])
	}
	if profile.Protocols["UDP"] != 1 {
		t.Errorf("UDP count = %d, expected 1", profile.Protocols["UDP"])
	}
	if len(profile.Lengths) != 3 || len(profile.Times) != 3 {
		t.Errorf("series lengths = %d/%d, expected 3/3", len(profile.Lengths), len(profile.Times))
	}
}
