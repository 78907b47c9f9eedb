package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

// TLSOptions picks where the game's certificate comes from.
type TLSOptions struct {
	Domain   string // Let's Encrypt domain; wins when set
	CertFile string
	KeyFile  string
	CertDir  string // autocert cache and self-signed output
}

// TLSResult holds the TLS config and, for Let's Encrypt, the manager whose
// HTTP handler must answer ACME challenges.
type TLSResult struct {
	Config      *tls.Config
	AutocertMgr *autocert.Manager
}

// SetupTLS builds a TLS config from Let's Encrypt, a cert/key pair, or a
// self-signed certificate kept in CertDir, in that order of preference.
func SetupTLS(opts TLSOptions) (*TLSResult, error) {
	switch {
	case opts.Domain != "":
		log.Printf("tls: using Let's Encrypt for domain %q", opts.Domain)
		cacheDir := filepath.Join(opts.CertDir, "autocert-cache")
		if err := os.MkdirAll(cacheDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating autocert cache dir: %w", err)
		}
		m := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(opts.Domain),
			Cache:      autocert.DirCache(cacheDir),
		}
		return &TLSResult{Config: m.TLSConfig(), AutocertMgr: m}, nil

	case opts.CertFile != "" && opts.KeyFile != "":
		log.Printf("tls: loading cert from %s, key from %s", opts.CertFile, opts.KeyFile)
		cfg, err := loadPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, err
		}
		return &TLSResult{Config: cfg}, nil
	}

	dir := opts.CertDir
	if dir == "" {
		dir = "certs"
	}
	cfg, err := selfSigned(dir)
	if err != nil {
		return nil, err
	}
	return &TLSResult{Config: cfg}, nil
}

func loadPair(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading TLS cert: %w", err)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, nil
}

// selfSigned loads the certificate in dir, generating it on first use.
func selfSigned(dir string) (*tls.Config, error) {
	certPath := filepath.Join(dir, "self-signed.crt")
	keyPath := filepath.Join(dir, "self-signed.key")
	if _, err := os.Stat(certPath); err == nil {
		if _, err := os.Stat(keyPath); err == nil {
			log.Printf("tls: loading existing self-signed cert from %s", dir)
			return loadPair(certPath, keyPath)
		}
	}

	log.Printf("tls: generating self-signed certificate in %s", dir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating cert dir: %w", err)
	}
	certPEM, keyPEM, err := generateCert(time.Now(), 365*24*time.Hour)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("writing cert: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("writing key: %w", err)
	}
	return loadPair(certPath, keyPath)
}

// generateCert returns a PEM certificate and EC key for localhost.
func generateCert(notBefore time.Time, validFor time.Duration) (certPEM, keyPEM []byte, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generating serial: %w", err)
	}
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"GoROM"}, CommonName: "localhost"},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, nil, fmt.Errorf("creating certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}
