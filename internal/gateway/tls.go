package gateway

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/climanode/internal/logging"
)

// NewTLSConfig loads a certificate for the UI server. Browsers on the local
// network are the only peers, so TLS 1.2 is the floor.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
