package discovery

import (
	"net"
	"testing"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTXTRoundTrip(t *testing.T) {
	records := encodeTXT(GatewayInfo{Name: "kitchen-hub"})
	name, version, err := decodeTXT(records)
	require.NoError(t, err)
	assert.Equal(t, "kitchen-hub", name)
	assert.Equal(t, ProtocolVersion, version)
}

func TestDecodeTXT(t *testing.T) {
	tests := []struct {
		name    string
		records []string
		wantErr bool
	}{
		{"missing version", []string{"nm=hub"}, true},
		{"malformed version", []string{"tv=abc", "nm=hub"}, true},
		{"unknown keys ignored", []string{"tv=1", "nm=hub", "xx=yy"}, false},
		{"no separator ignored", []string{"tv=1", "garbage"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := decodeTXT(tt.records)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadTXTRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEntryToGateway(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "hub"},
		HostName:      "hub.local.",
		Port:          7700,
		Text:          []string{"tv=1", "nm=kitchen-hub"},
		AddrIPv4:      []net.IP{net.IPv4(192, 168, 1, 10)},
	}

	svc := entryToGateway(entry)
	require.NotNil(t, svc)
	assert.Equal(t, "hub", svc.InstanceName)
	assert.Equal(t, "kitchen-hub", svc.Name)
	assert.Equal(t, 1, svc.Version)
	assert.Equal(t, "192.168.1.10:7700", svc.Addr())

	// Unusable TXT records drop the entry.
	entry.Text = []string{"nm=kitchen-hub"}
	assert.Nil(t, entryToGateway(entry))
}

func TestGatewayServiceAddr(t *testing.T) {
	svc := &GatewayService{Host: "hub.local.", Port: 7700}
	assert.Equal(t, "hub.local.:7700", svc.Addr())

	svc.Addresses = []string{"10.0.0.5", "10.0.0.6"}
	assert.Equal(t, "10.0.0.5:7700", svc.Addr())
}

func TestMergeAndRemoveAddresses(t *testing.T) {
	merged := mergeAddresses([]string{"10.0.0.1"}, []string{"10.0.0.1", "10.0.0.2"})
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, merged)

	entry := &zeroconf.ServiceEntry{AddrIPv4: []net.IP{net.IPv4(10, 0, 0, 1)}}
	left := removeAddresses(merged, entry)
	assert.Equal(t, []string{"10.0.0.2"}, left)
}
