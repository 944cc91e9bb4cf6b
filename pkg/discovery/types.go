package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Service constants.
const (
	// ServiceType is the DNS-SD service type for Tether gateways.
	ServiceType = "_tether._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPort is the conventional gateway listen port.
	DefaultPort = 7700

	// ProtocolVersion is the advertised protocol version.
	ProtocolVersion = 1
)

// TXT record keys.
const (
	txtKeyVersion = "tv"
	txtKeyName    = "nm"
)

// Discovery errors.
var (
	// ErrNotFound indicates no matching service was found.
	ErrNotFound = errors.New("service not found")

	// ErrBadTXTRecord indicates a service entry with missing or
	// malformed TXT records.
	ErrBadTXTRecord = errors.New("bad TXT record")
)

// GatewayInfo describes the service a gateway advertises.
type GatewayInfo struct {
	// Name is the human-readable gateway name; it doubles as the
	// service instance name.
	Name string

	// Port is the listen port. Zero selects DefaultPort.
	Port uint16
}

// GatewayService is a gateway found on the network.
type GatewayService struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Host is the advertised hostname.
	Host string

	// Port is the gateway listen port.
	Port uint16

	// Addresses are the IP addresses collected across interfaces.
	Addresses []string

	// Name is the gateway name from the TXT record.
	Name string

	// Version is the advertised protocol version.
	Version int
}

// Addr returns a dialable "host:port" for the gateway, preferring a
// resolved IP address over the mDNS hostname.
func (s *GatewayService) Addr() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

// encodeTXT builds the TXT records for a gateway advertisement.
func encodeTXT(info GatewayInfo) []string {
	return []string{
		fmt.Sprintf("%s=%d", txtKeyVersion, ProtocolVersion),
		fmt.Sprintf("%s=%s", txtKeyName, info.Name),
	}
}

// decodeTXT parses gateway TXT records. The version key is required.
func decodeTXT(records []string) (name string, version int, err error) {
	version = -1
	for _, rec := range records {
		key, value, ok := strings.Cut(rec, "=")
		if !ok {
			continue
		}
		switch key {
		case txtKeyVersion:
			v, convErr := strconv.Atoi(value)
			if convErr != nil {
				return "", 0, fmt.Errorf("%w: %s=%s", ErrBadTXTRecord, key, value)
			}
			version = v
		case txtKeyName:
			name = value
		}
	}
	if version < 0 {
		return "", 0, fmt.Errorf("%w: missing %s", ErrBadTXTRecord, txtKeyVersion)
	}
	return name, version, nil
}
