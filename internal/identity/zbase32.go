package identity

// zbase32 implements the human-friendly base32 variant used by Lightning
// node software (lnd/c-lightning `signmessage`) to render recoverable
// ECDSA signatures as short ASCII strings. The alphabet differs from
// RFC 4648 base32, so a small self-contained codec lives here beside
// its only call sites.
const zbase32Alphabet = "ybndrfg8ejkmcpqxot1uwisza345h769"

var zbase32Decode [256]int8

func init() {
	for i := range zbase32Decode {
		zbase32Decode[i] = -1
	}
	for i, c := range zbase32Alphabet {
		zbase32Decode[byte(c)] = int8(i)
	}
}

// zbase32Encode renders data as a zbase32 string.
func zbase32Encode(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var out []byte
	var buf uint32
	var bits uint
	for _, b := range data {
		buf = (buf << 8) | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out = append(out, zbase32Alphabet[(buf>>bits)&0x1f])
		}
	}
	if bits > 0 {
		out = append(out, zbase32Alphabet[(buf<<(5-bits))&0x1f])
	}
	return string(out)
}

// zbase32DecodeString parses a zbase32 string back into bytes.
func zbase32DecodeString(s string) ([]byte, error) {
	var out []byte
	var buf uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		v := zbase32Decode[s[i]]
		if v < 0 {
			return nil, errInvalidZbase32
		}
		buf = (buf << 5) | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buf>>bits))
		}
	}
	return out, nil
}

type zbase32Err struct{}

func (zbase32Err) Error() string { return "identity: invalid zbase32 signature" }

var errInvalidZbase32 = zbase32Err{}
