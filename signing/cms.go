package signing

import (
	"crypto"
	"crypto/x509"
	"io/ioutil"
	"time"

	. "github.com/warpfork/go-errcat"
	"go.mozilla.org/pkcs7"

	"github.com/polydawn/bpkg/api"
)

type cmsSigner struct {
	key  crypto.Signer
	cert *x509.Certificate
}

// NewSigner loads the identity's key material.
// Missing, unreadable, or mismatched material is api.ErrSigning.
func NewSigner(id Identity) (Signer, error) {
	key, cert, err := loadIdentity(id)
	if err != nil {
		return nil, err
	}
	return &cmsSigner{key: key, cert: cert}, nil
}

func (s *cmsSigner) Sign(contentPath string) ([]byte, error) {
	content, err := ioutil.ReadFile(contentPath)
	if err != nil {
		return nil, Errorf(api.ErrIO, "signing: cannot read content: %s", err)
	}
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, Errorf(api.ErrSigning, "signing: %s", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, Errorf(api.ErrSigning, "signing: %s", err)
	}
	sd.Detach()
	sig, err := sd.Finish()
	if err != nil {
		return nil, Errorf(api.ErrSigning, "signing: %s", err)
	}
	return sig, nil
}

type cmsVerifier struct {
	roots *x509.CertPool
}

// NewVerifier reads the trust anchor: a PEM bundle of root certificates,
// or the platform trust store if trustAnchorPath is empty.
func NewVerifier(trustAnchorPath string) (Verifier, error) {
	roots, err := loadTrustPool(trustAnchorPath)
	if err != nil {
		return nil, err
	}
	return &cmsVerifier{roots: roots}, nil
}

/*
	Verify checks in two steps, so the two failure kinds stay apart:
	first the signature itself (digest, signature math, signing time inside
	the certificate's validity), then the certificate chain to the roots,
	evaluated at the signing time.
*/
func (v *cmsVerifier) Verify(content []byte, signature []byte) (time.Time, error) {
	p7, err := pkcs7.Parse(signature)
	if err != nil {
		return time.Time{}, Errorf(api.ErrSignatureInvalid, "signature unreadable: %s", err)
	}
	p7.Content = content
	if err := p7.Verify(); err != nil {
		return time.Time{}, Errorf(api.ErrSignatureInvalid, "signature invalid: %s", err)
	}
	if err := p7.VerifyWithChain(v.roots); err != nil {
		return time.Time{}, Errorf(api.ErrTrustRejected, "signer not trusted: %s", err)
	}
	var signedAt time.Time
	if err := p7.UnmarshalSignedAttribute(pkcs7.OIDAttributeSigningTime, &signedAt); err != nil {
		return time.Time{}, Errorf(api.ErrSignatureInvalid, "signature carries no signing time: %s", err)
	}
	return signedAt, nil
}
