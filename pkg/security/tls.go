// Package security builds the TLS 1.3 configurations the relay needs: the
// client side of the mutually-authenticated fleet-map uplink, and the
// operator API listener when certificates are configured.
package security

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ServerTLSConfig is the operator API listener config. The listener serves
// the certFile/keyFile identity and only accepts clients presenting a
// certificate signed by caFile.
func ServerTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, pool, err := loadIdentity(certFile, keyFile, caFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}, nil
}

// ClientTLSConfig is the fleet-map uplink config. The relay presents the
// certFile/keyFile identity and verifies the broker against caFile instead
// of the system roots.
func ClientTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, pool, err := loadIdentity(certFile, keyFile, caFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
	}, nil
}

// loadIdentity reads the endpoint keypair and the peer CA bundle.
func loadIdentity(certFile, keyFile, caFile string) (tls.Certificate, *x509.CertPool, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("security: load keypair: %w", err)
	}

	caPEM, err := os.ReadFile(caFile) // #nosec G304 – caller-controlled path
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("security: read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return tls.Certificate{}, nil, errors.New("security: no certificates in ca file")
	}
	return cert, pool, nil
}
