package capture

// Synthetic pcap recording of the DoIP conversation

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	testerMAC = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x0e, 0x00}
	ecuMAC    = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
)

// Recorder writes every DoIP frame it observes as an Ethernet/IPv4/TCP
// packet. It needs no capture privileges: packets are built from the
// frames the transport sends and receives.
type Recorder struct {
	mu     sync.Mutex
	file   *os.File
	writer *pcapgo.Writer
	now    func() time.Time
	err    error

	testerIP   net.IP
	ecuIP      net.IP
	testerPort uint16
	ecuPort    uint16
	testerSeq  uint32
	ecuSeq     uint32
	packets    int
}

// Create opens path and writes the pcap file header.
func Create(path string) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap file: %w", err)
	}
	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		file.Close()
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Recorder{
		file:       file,
		writer:     writer,
		now:        time.Now,
		testerIP:   net.IPv4(127, 0, 0, 1).To4(),
		ecuIP:      net.IPv4(127, 0, 0, 1).To4(),
		testerPort: 50000,
		ecuPort:    13400,
		testerSeq:  1,
		ecuSeq:     1,
	}, nil
}

// Connected sets the flow endpoints from the TCP connection.
func (r *Recorder) Connected(local, remote net.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ip, port, ok := tcpEndpoint(local); ok {
		r.testerIP, r.testerPort = ip, port
	}
	if ip, port, ok := tcpEndpoint(remote); ok {
		r.ecuIP, r.ecuPort = ip, port
	}
}

// Outbound records a frame sent by the tester.
func (r *Recorder) Outbound(frame []byte) {
	r.record(frame, true)
}

// Inbound records a frame received from the entity.
func (r *Recorder) Inbound(frame []byte) {
	r.record(frame, false)
}

func (r *Recorder) record(frame []byte, outbound bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}

	srcMAC, dstMAC := testerMAC, ecuMAC
	srcIP, dstIP := r.testerIP, r.ecuIP
	srcPort, dstPort := r.testerPort, r.ecuPort
	seq, ack := r.testerSeq, r.ecuSeq
	if !outbound {
		srcMAC, dstMAC = dstMAC, srcMAC
		srcIP, dstIP = dstIP, srcIP
		srcPort, dstPort = dstPort, srcPort
		seq, ack = ack, seq
	}

	ethernet := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		ACK:     true,
		PSH:     true,
		Seq:     seq,
		Ack:     ack,
		Window:  65535,
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)

	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}
	if err := gopacket.SerializeLayers(buffer, opts, ethernet, ip, tcp, gopacket.Payload(frame)); err != nil {
		r.err = fmt.Errorf("serialize packet: %w", err)
		return
	}
	data := buffer.Bytes()
	if err := r.writer.WritePacket(gopacket.CaptureInfo{
		Timestamp:     r.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}, data); err != nil {
		r.err = fmt.Errorf("write packet: %w", err)
		return
	}

	if outbound {
		r.testerSeq += uint32(len(frame))
	} else {
		r.ecuSeq += uint32(len(frame))
	}
	r.packets++
}

// Packets returns the number of packets written so far.
func (r *Recorder) Packets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.packets
}

// Close closes the file and returns the first write error, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	closeErr := r.file.Close()
	if r.err != nil {
		return r.err
	}
	if closeErr != nil {
		return fmt.Errorf("close pcap file: %w", closeErr)
	}
	return nil
}

func tcpEndpoint(addr net.Addr) (net.IP, uint16, bool) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return nil, 0, false
	}
	ip := tcpAddr.IP.To4()
	if ip == nil {
		return nil, 0, false
	}
	return ip, uint16(tcpAddr.Port), true
}
