/*
	Package signing produces and checks the detached signature that travels
	next to the content inside a package.

	Signatures are CMS (PKCS#7) SignedData with the content detached, a
	SHA-256 digest, and a signed signingTime attribute.  The signing time is
	what an unpack reports back as the package's timestamp.
*/
package signing

import (
	"time"
)

// Signer produces a detached signature over the bytes of a file.
type Signer interface {
	Sign(contentPath string) ([]byte, error)
}

// Verifier checks a detached signature over content, and returns the
// signing time recorded inside the signature.
//
// Errors are categorized: api.ErrSignatureInvalid if the signature is
// malformed or does not match the content; api.ErrTrustRejected if the
// signature is sound but its certificate does not chain to a trusted root.
type Verifier interface {
	Verify(content []byte, signature []byte) (time.Time, error)
}

/*
	Identity names the key material a Signer signs with.

	KeyPath is either a PEM private key (PKCS#1, PKCS#8, or SEC1; optionally
	passphrase-encrypted) alongside a PEM certificate at CertPath,
	or a PKCS#12 bundle (".p12" or ".pfx") holding both, in which case
	CertPath is ignored.

	Password decrypts whichever of those is encrypted.
*/
type Identity struct {
	KeyPath  string
	CertPath string
	Password string
}
