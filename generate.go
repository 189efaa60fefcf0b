package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	rsaBits      = 2048
	certValidity = 365 * 24 * time.Hour
)

// serials are drawn from [0, 2^128-1) and shifted by one, zero is not allowed
var serialLimit = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Identity is what a certificate is issued for.
type Identity struct {
	CommonName  string
	DNSNames    []string
	IPAddresses []net.IP
}

// NewIdentity covers localhost, 127.0.0.1 and the discovered address.
func NewIdentity(localIP net.IP) Identity {
	id := Identity{
		CommonName:  localIP.String(),
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{loopbackIP},
	}
	if !localIP.Equal(loopbackIP) {
		id.IPAddresses = append(id.IPAddresses, localIP)
	}
	return id
}

// Credentials points at a PEM key and certificate on disk.
type Credentials struct {
	KeyFile  string
	CertFile string
}

// Provisioner produces the credentials the server starts with.
type Provisioner interface {
	Provision(id Identity) (*Credentials, error)
}

// SelfSignedProvisioner creates a new key and self-signed certificate on
// every call, overwriting whatever is at KeyFile and CertFile in Dir.
type SelfSignedProvisioner struct {
	Dir      string
	KeyFile  string
	CertFile string

	now func() time.Time
}

func (p *SelfSignedProvisioner) Provision(id Identity) (*Credentials, error) {
	l := log.WithField("cn", id.CommonName)
	l.Infof("Generating %d-bit RSA key", rsaBits)
	key, err := rsa.GenerateKey(rand.Reader, rsaBits)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	l.Debugln("Generating self-signed certificate")
	der, err := p.newCertificate(id, key)
	if err != nil {
		return nil, err
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}

	creds := &Credentials{
		KeyFile:  filepath.Join(p.Dir, p.KeyFile),
		CertFile: filepath.Join(p.Dir, p.CertFile),
	}
	data := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err = os.WriteFile(creds.KeyFile, data, 0600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}
	data = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err = os.WriteFile(creds.CertFile, data, 0644); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}

	l.WithFields(log.Fields{"key": creds.KeyFile, "cert": creds.CertFile}).Infoln("Wrote self-signed certificate")
	return creds, nil
}

func (p *SelfSignedProvisioner) newCertificate(id Identity, key *rsa.PrivateKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, fmt.Errorf("generate serial: %w", err)
	}
	serial.Add(serial, big.NewInt(1))

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	notBefore := now().UTC()

	name := pkix.Name{
		Country:      []string{"US"},
		Province:     []string{"State"},
		Locality:     []string{"City"},
		Organization: []string{"Organization"},
		CommonName:   id.CommonName,
	}
	template := &x509.Certificate{
		SerialNumber:       serial,
		Subject:            name,
		Issuer:             name,
		NotBefore:          notBefore,
		NotAfter:           notBefore.Add(certValidity),
		SignatureAlgorithm: x509.SHA256WithRSA,

		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,

		DNSNames:    id.DNSNames,
		IPAddresses: id.IPAddresses,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	return der, nil
}

// LoadCertificate reads the first certificate from a PEM file.
func LoadCertificate(file string) (*x509.Certificate, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	b, _ := pem.Decode(data)
	if b == nil || b.Type != "CERTIFICATE" {
		return nil, errors.New("certificate file wrong type, expected CERTIFICATE")
	}
	return x509.ParseCertificate(b.Bytes)
}
