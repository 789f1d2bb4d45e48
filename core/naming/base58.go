package naming

// Bitcoin-style alphabet: no 0/O/I/l ambiguity, and every character is valid
// in a Go identifier.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// EncodeBase58 encodes a 64-bit value. Zero encodes as "1".
func EncodeBase58(v uint64) string {
	if v == 0 {
		return base58Alphabet[:1]
	}

	var buf [11]byte // 58^11 > 2^64
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = base58Alphabet[v%58]
		v /= 58
	}
	return string(buf[i:])
}
