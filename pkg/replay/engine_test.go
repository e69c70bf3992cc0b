// SPDX-License-Identifier: GPL-3.0-or-later

package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsreplay/engine/pkg/config"
	"github.com/dnsreplay/engine/pkg/object"
)

func TestNewEngineParsesDoHURLInH2Mode(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport = config.TransportH2
	cfg.DoHURL = "https://resolver.example/dns-query"

	e, err := NewEngine(cfg, "resolver.example:443", nil)
	require.NoError(t, err)
	assert.Equal(t, "resolver.example", e.h2Authority)
	assert.Equal(t, "/dns-query", e.h2Path)
}

func TestNewEngineRejectsUnparseableDoHURL(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport = config.TransportH2
	cfg.DoHURL = "://not-a-url"

	_, err := NewEngine(cfg, "resolver.example:443", nil)
	assert.Error(t, err)
}

func TestClientIDOfIP6UsesRoutingMutatedDst(t *testing.T) {
	var dst [16]byte
	dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 7
	ip6 := object.NewIP6View(nil, 0, 0, 17, 64, [16]byte{}, dst)
	assert.EqualValues(t, 7, clientIDOf(ip6))
}

func TestClientIDOfIPv4HashesSource(t *testing.T) {
	ip := object.NewIPView(nil, 4, 5, 0, 20, 0, 0, 64, 17, 0, [4]byte{192, 0, 2, 1}, [4]byte{})
	id1 := clientIDOf(ip)
	id2 := clientIDOf(ip)
	assert.Equal(t, id1, id2)

	other := object.NewIPView(nil, 4, 5, 0, 20, 0, 0, 64, 17, 0, [4]byte{192, 0, 2, 2}, [4]byte{})
	assert.NotEqual(t, id1, clientIDOf(other))
}

func TestClientIDOfWithoutIPLayerIsZero(t *testing.T) {
	p := object.NewPayloadView(nil, []byte("x"), 0)
	assert.EqualValues(t, 0, clientIDOf(p))
}

func TestDNSPayloadOfPrefersParsedDNSView(t *testing.T) {
	payload := object.NewPayloadView(nil, dnsHeader(1, false, 0), 0)
	d := object.NewDNSView(payload, dnsHeader(1, false, 0))
	got := dnsPayloadOf(d)
	assert.Equal(t, d.Payload, got)
}

func TestDNSPayloadOfFallsBackToPayload(t *testing.T) {
	p := object.NewPayloadView(nil, []byte{1, 2, 3}, 0)
	assert.Equal(t, []byte{1, 2, 3}, dnsPayloadOf(p))
}

func TestDNSPayloadOfNilWithoutEitherLayer(t *testing.T) {
	ip := object.NewIPView(nil, 4, 5, 0, 20, 0, 0, 64, 17, 0, [4]byte{}, [4]byte{})
	assert.Nil(t, dnsPayloadOf(ip))
}

func TestEngineReceiverDeliversToClientSlot(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport = config.TransportUDP
	cfg.MaxClients = 4
	e, err := NewEngine(cfg, "127.0.0.1:53", nil)
	require.NoError(t, err)
	defer e.Close()

	recv := e.Receiver()
	p := object.NewPayloadView(nil, dnsHeader(1, false, 0), 0)
	recv(p)

	assert.EqualValues(t, 1, e.Series.Sum.Requests)
}
