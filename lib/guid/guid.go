/*
	Random identifiers for naming scratch resources.

	Identifiers are base58 (so they're safe in filenames and don't contain
	confusable characters) and always exactly `size` characters long.
*/
package guid

import (
	"crypto/rand"
	"strings"

	"github.com/polydawn/refmt/misc"
)

const (
	entropy = 16 // bytes of randomness per id
	size    = 22 // base58 chars needed to encode `entropy` bytes; shorter encodings are left-padded
)

func New() string {
	var bs [entropy]byte
	if _, err := rand.Read(bs[:]); err != nil {
		panic(err) // the system entropy source being broken is not recoverable.
	}
	s := misc.Base58Encode(bs[:])
	if len(s) < size {
		s = strings.Repeat("1", size-len(s)) + s // '1' is the zero digit in base58.
	}
	return s
}
