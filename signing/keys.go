package signing

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"io/ioutil"
	"path/filepath"
	"strings"

	. "github.com/warpfork/go-errcat"
	"golang.org/x/crypto/pkcs12"

	"github.com/polydawn/bpkg/api"
)

func loadIdentity(id Identity) (crypto.Signer, *x509.Certificate, error) {
	switch strings.ToLower(filepath.Ext(id.KeyPath)) {
	case ".p12", ".pfx":
		return loadPKCS12(id)
	default:
		return loadPEMPair(id)
	}
}

func loadPKCS12(id Identity) (crypto.Signer, *x509.Certificate, error) {
	bs, err := ioutil.ReadFile(id.KeyPath)
	if err != nil {
		return nil, nil, Errorf(api.ErrSigning, "signing: cannot read identity bundle: %s", err)
	}
	key, cert, err := pkcs12.Decode(bs, id.Password)
	if err != nil {
		return nil, nil, Errorf(api.ErrSigning, "signing: cannot decode identity bundle %s: %s", id.KeyPath, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, nil, Errorf(api.ErrSigning, "signing: identity bundle %s holds a %T, which cannot sign", id.KeyPath, key)
	}
	return signer, cert, nil
}

func loadPEMPair(id Identity) (crypto.Signer, *x509.Certificate, error) {
	key, err := loadPEMKey(id.KeyPath, id.Password)
	if err != nil {
		return nil, nil, err
	}
	cert, err := loadPEMCert(id.CertPath)
	if err != nil {
		return nil, nil, err
	}
	pub, ok := key.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(cert.PublicKey) {
		return nil, nil, Errorf(api.ErrSigning, "signing: certificate %s does not match key %s", id.CertPath, id.KeyPath)
	}
	return key, cert, nil
}

func loadPEMKey(path string, password string) (crypto.Signer, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, Errorf(api.ErrSigning, "signing: cannot read key: %s", err)
	}
	block, _ := pem.Decode(bs)
	if block == nil {
		return nil, Errorf(api.ErrSigning, "signing: %s holds no PEM data", path)
	}
	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) {
		der, err = x509.DecryptPEMBlock(block, []byte(password))
		if err != nil {
			return nil, Errorf(api.ErrSigning, "signing: cannot decrypt key %s: %s", path, err)
		}
	}
	var key interface{}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(der)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(der)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(der)
	default:
		return nil, Errorf(api.ErrSigning, "signing: %s holds a %q block, not a private key", path, block.Type)
	}
	if err != nil {
		return nil, Errorf(api.ErrSigning, "signing: cannot parse key %s: %s", path, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, Errorf(api.ErrSigning, "signing: %s holds a %T, which cannot sign", path, key)
	}
	return signer, nil
}

func loadPEMCert(path string) (*x509.Certificate, error) {
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, Errorf(api.ErrSigning, "signing: cannot read certificate: %s", err)
	}
	block, _ := pem.Decode(bs)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, Errorf(api.ErrSigning, "signing: %s holds no PEM certificate", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, Errorf(api.ErrSigning, "signing: cannot parse certificate %s: %s", path, err)
	}
	return cert, nil
}

// loadTrustPool reads a PEM bundle of trusted roots.
// An empty path means the platform's installed trust store.
func loadTrustPool(path string) (*x509.CertPool, error) {
	if path == "" {
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, Errorf(api.ErrTrustRejected, "signing: platform trust store unavailable: %s", err)
		}
		return pool, nil
	}
	bs, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, Errorf(api.ErrTrustRejected, "signing: cannot read trust anchor: %s", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(bs) {
		return nil, Errorf(api.ErrTrustRejected, "signing: trust anchor %s holds no PEM certificates", path)
	}
	return pool, nil
}
