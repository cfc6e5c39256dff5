package wire

import (
	"fmt"
	"io"
	"net"
)

// NetworkAddress is a peer address as exchanged in addr messages and the
// version handshake. IPs are stored as 16 bytes, IPv4 mapped into IPv6.
type NetworkAddress struct {
	// Time is the last-seen unix time. Not serialized in the short form
	// used inside version messages.
	Time int64

	// Stream the peer serves. Not serialized in the short form.
	Stream uint32

	Services uint64
	IP       net.IP
	Port     uint16
}

func NewNetworkAddress(ip net.IP, port uint16, stream uint32, now int64) *NetworkAddress {
	return &NetworkAddress{
		Time:     now,
		Stream:   stream,
		Services: NodeNetwork,
		IP:       ip.To16(),
		Port:     port,
	}
}

func NewNetworkAddressFromAddr(addr net.Addr, stream uint32, now int64) (*NetworkAddress, error) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		host, portStr, err := net.SplitHostPort(addr.String())
		if err != nil {
			return nil, err
		}

		ip := net.ParseIP(host)

		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
			return nil, err
		}

		return NewNetworkAddress(ip, uint16(port), stream, now), nil
	}

	return NewNetworkAddress(tcpAddr.IP, uint16(tcpAddr.Port), stream, now), nil
}

func (na *NetworkAddress) TCPAddr() *net.TCPAddr {
	return &net.TCPAddr{IP: na.IP, Port: int(na.Port)}
}

func (na *NetworkAddress) String() string {
	return na.TCPAddr().String()
}

// Key returns a map key identifying the endpoint regardless of the
// last-seen time.
func (na *NetworkAddress) Key() string {
	return na.TCPAddr().String()
}

// Encode writes the full form used in addr messages.
func (na *NetworkAddress) Encode(w io.Writer) error {
	if err := WriteInt64(w, na.Time); err != nil {
		return err
	}

	if err := WriteUint32(w, na.Stream); err != nil {
		return err
	}

	return na.EncodeShort(w)
}

// EncodeShort writes the reduced form used inside version messages, without
// the time and stream fields.
func (na *NetworkAddress) EncodeShort(w io.Writer) error {
	if err := WriteUint64(w, na.Services); err != nil {
		return err
	}

	ip := na.IP.To16()
	if ip == nil {
		ip = make(net.IP, 16)
	}

	if _, err := w.Write(ip); err != nil {
		return err
	}

	return WriteUint16(w, na.Port)
}

func (na *NetworkAddress) Decode(r io.Reader) error {
	t, err := ReadInt64(r)
	if err != nil {
		return err
	}

	stream, err := ReadUint32(r)
	if err != nil {
		return err
	}

	na.Time = t
	na.Stream = stream

	return na.DecodeShort(r)
}

func (na *NetworkAddress) DecodeShort(r io.Reader) error {
	services, err := ReadUint64(r)
	if err != nil {
		return err
	}

	ip, err := ReadBytes(r, 16)
	if err != nil {
		return err
	}

	port, err := ReadUint16(r)
	if err != nil {
		return err
	}

	na.Services = services
	na.IP = net.IP(ip)
	na.Port = port

	return nil
}
