package common

// WipeByteArray zeroes b. The station calls it on a typed voting identifier
// once the request carrying it has been sent.
func WipeByteArray(b []byte) {
	clear(b)
}
