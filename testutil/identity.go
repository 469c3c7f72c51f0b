package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io/ioutil"
	"math/big"
	"path/filepath"
	"sync"
	"time"
)

var (
	identityMu   sync.Mutex
	identityKeys = map[string]*rsa.PrivateKey{}
)

// Key generation is the slow part, so keys are kept per name for the life
// of the test process.  Certificates are minted fresh on every call.
func identityKey(name string) *rsa.PrivateKey {
	identityMu.Lock()
	defer identityMu.Unlock()
	if key, ok := identityKeys[name]; ok {
		return key
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	identityKeys[name] = key
	return key
}

/*
	Writes a self-signed signing identity into dir: "<name>.key" (PKCS#1
	PEM) and "<name>.crt" (PEM).  The certificate is its own trust anchor,
	so the cert path doubles as a trust bundle for verification.

	Validity starts an hour in the past so that clock skew between minting
	and signing cannot put the signing time before NotBefore.
*/
func WriteIdentity(dir string, name string) (keyPath string, certPath string) {
	key := identityKey(name)
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(now.UnixNano()),
		Subject:               pkix.Name{CommonName: "bpkg test signer " + name},
		NotBefore:             now.Add(-1 * time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}
	keyPath = filepath.Join(dir, name+".key")
	certPath = filepath.Join(dir, name+".crt")
	writePEM(keyPath, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	writePEM(certPath, &pem.Block{Type: "CERTIFICATE", Bytes: der})
	return keyPath, certPath
}

/*
	Like WriteIdentity, but the key is passphrase-encrypted PEM.
*/
func WriteEncryptedIdentity(dir string, name string, password string) (keyPath string, certPath string) {
	keyPath, certPath = WriteIdentity(dir, name)
	block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(identityKey(name)), []byte(password), x509.PEMCipherAES256)
	if err != nil {
		panic(err)
	}
	writePEM(keyPath, block)
	return keyPath, certPath
}

func writePEM(path string, block *pem.Block) {
	if err := ioutil.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		panic(err)
	}
}
