// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/src/output/dnssim.hh's
// output_dnssim_stats struct (the rcode_* counter fields).

package stats

// RCode identifies a DNS response code bucket. Named buckets carry
// IANA's RCODE names, but their values are consecutive and do not equal
// the wire values. [rawRCodeToBucket] maps wire RCODEs 0-10 to their
// named buckets and every other value to RCodeOther, so the buckets
// from RCodeBadVers to RCodeBadCookie are never incremented.
type RCode int

const (
	RCodeNoError RCode = iota
	RCodeFormErr
	RCodeServFail
	RCodeNXDomain
	RCodeNotImp
	RCodeRefused
	RCodeYXDomain
	RCodeYXRRSet
	RCodeNXRRSet
	RCodeNotAuth
	RCodeNotZone
	RCodeBadVers
	RCodeBadKey
	RCodeBadTime
	RCodeBadMode
	RCodeBadName
	RCodeBadAlg
	RCodeBadTrunc
	RCodeBadCookie
	RCodeOther

	rcodeCount
)

var rcodeNames = [rcodeCount]string{
	RCodeNoError:   "noerror",
	RCodeFormErr:   "formerr",
	RCodeServFail:  "servfail",
	RCodeNXDomain:  "nxdomain",
	RCodeNotImp:    "notimp",
	RCodeRefused:   "refused",
	RCodeYXDomain:  "yxdomain",
	RCodeYXRRSet:   "yxrrset",
	RCodeNXRRSet:   "nxrrset",
	RCodeNotAuth:   "notauth",
	RCodeNotZone:   "notzone",
	RCodeBadVers:   "badvers",
	RCodeBadKey:    "badkey",
	RCodeBadTime:   "badtime",
	RCodeBadMode:   "badmode",
	RCodeBadName:   "badname",
	RCodeBadAlg:    "badalg",
	RCodeBadTrunc:  "badtrunc",
	RCodeBadCookie: "badcookie",
	RCodeOther:     "other",
}

func (r RCode) String() string {
	if r < 0 || int(r) >= len(rcodeNames) {
		return "other"
	}
	return rcodeNames[r]
}

// rawRCodeToBucket maps a wire RCODE value (the 4-bit base code; the
// extended RCODE from OPT is out of scope here since pkg/dnswire never
// parses EDNS0) to the named [RCode] bucket it belongs to.
func rawRCodeToBucket(raw int) RCode {
	switch raw {
	case 0:
		return RCodeNoError
	case 1:
		return RCodeFormErr
	case 2:
		return RCodeServFail
	case 3:
		return RCodeNXDomain
	case 4:
		return RCodeNotImp
	case 5:
		return RCodeRefused
	case 6:
		return RCodeYXDomain
	case 7:
		return RCodeYXRRSet
	case 8:
		return RCodeNXRRSet
	case 9:
		return RCodeNotAuth
	case 10:
		return RCodeNotZone
	default:
		return RCodeOther
	}
}
