// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/dns.hh, core/object/dns.c (original_source).
// The have_* bitfields become bool fields; the C file's free functions
// for the DNS object have no dynamic allocation to release beyond what
// [base]/[Payload] already model, since Payload/At borrow the packet
// buffer.

package object

// DNS is a DNS message view over a byte buffer. Parsing (pkg/dnswire)
// advances At/Left and sets the have_* flags as each field is
// successfully read; a truncated message simply leaves later fields
// unset rather than failing outright, so callers can always inspect how
// far decoding got.
type DNS struct {
	base

	Payload []byte // the full message as captured
	At      int    // cursor into Payload for the next read
	Len     int    // len(Payload)
	Left    int    // bytes remaining from At to the end of Payload

	// Seq is a monotonic sequence number the ingest pipeline assigns to
	// each captured message before fan-out, letting a respdiff-style
	// sink correlate one query against answers collected from more than
	// one resolver. Zero unless the pipeline sets it.
	Seq uint64

	// IncludesDNSLen marks that Payload is prefixed with a 2-byte
	// length (DNS-over-TCP/TLS framing); the caller sets this before
	// parsing the header so the length prefix is consumed as DNSLen
	// rather than mistaken for the message ID.
	IncludesDNSLen bool
	HaveDNSLen     bool
	DNSLen         uint16

	HaveID      bool
	HaveQR      bool
	HaveOpcode  bool
	HaveAA      bool
	HaveTC      bool
	HaveRD      bool
	HaveRA      bool
	HaveZ       bool
	HaveAD      bool
	HaveCD      bool
	HaveRcode   bool
	HaveQDCount bool
	HaveANCount bool
	HaveNSCount bool
	HaveARCount bool

	ID      uint16
	QR      bool
	Opcode  uint8 // 4 bits
	AA      bool
	TC      bool
	RD      bool
	RA      bool
	Z       bool
	AD      bool
	CD      bool
	Rcode   uint8 // 4 bits
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// NewDNSView wraps payload (the DNS message, as captured from a UDP
// datagram or reassembled TCP/TLS/H2 stream) for parsing. Reset returns
// the cursor to the start.
func NewDNSView(prev Object, payload []byte) *DNS {
	d := &DNS{base: base{prev: prev}}
	d.Reset(payload)
	return d
}

func (d *DNS) Kind() Kind { return KindDNS }

// Reset rebinds the view to payload and clears all have_* flags and the
// cursor, mirroring core_object_dns_reset.
func (d *DNS) Reset(payload []byte) {
	*d = DNS{
		base:           d.base,
		Payload:        payload,
		At:             0,
		Len:            len(payload),
		Left:           len(payload),
		IncludesDNSLen: d.IncludesDNSLen,
	}
}

func (d *DNS) Copy() *DNS {
	cp := *d
	cp.owned = true
	cp.prev = nil
	cp.Payload = append([]byte(nil), d.Payload...)
	return &cp
}

func (d *DNS) Free() {
	assertOwned(KindDNS, d.owned)
	d.Payload = nil
}

// Label is one element of a parsed domain name: either a terminal (zero
// byte), a compression pointer, an extension-bit marker (the two
// reserved high bits of the length octet, values 01/10), or a literal
// fragment of Length bytes at Offset into the owning DNS message.
type Label struct {
	IsEnd             bool
	HaveLength        bool
	HaveOffset        bool
	HaveExtensionBits bool
	HaveDN            bool
	ExtensionBits     uint8 // 2 bits, valid when HaveExtensionBits

	Length uint8
	Offset uint16
}

// Q is a parsed DNS question entry (the name itself is represented as
// a []Label slice supplied by the caller, per spec.md's DNS view model).
type Q struct {
	HaveType  bool
	HaveClass bool

	Type  uint16
	Class uint16

	Labels int // number of labels consumed for the owner name
}

// RR is a parsed DNS resource record (answer/authority/additional).
type RR struct {
	HaveType         bool
	HaveClass        bool
	HaveTTL          bool
	HaveRDLength     bool
	HaveRData        bool
	HaveRDataLabels  bool
	HavePadding      bool

	Type     uint16
	Class    uint16
	TTL      uint32
	RDLength uint16

	Labels        int // labels consumed for the owner name
	RDataOffset   int // offset of RDATA within Payload
	RDataLabels   int // number of label-encoded names inside RDATA, per type
	PaddingOffset int
	PaddingLength int
}
