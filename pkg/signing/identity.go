package signing

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	gop12 "software.sslmate.com/src/go-pkcs12"
)

// Identity is a distribution signing identity loaded from a PKCS#12 file.
// Only the certificate and team identity are interesting here; the private
// key never leaves this process and is never handed to the external tools,
// which load the P12 themselves.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.PrivateKey
	CertChain   []*x509.Certificate
	TeamID      string
}

// LoadIdentity decodes a PKCS#12 blob into a signing identity.
func LoadIdentity(p12Data []byte, password string) (*Identity, error) {
	privateKey, cert, caCerts, err := gop12.DecodeChain(p12Data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode P12: %w", err)
	}

	chain := []*x509.Certificate{cert}
	chain = append(chain, caCerts...)

	return &Identity{
		Certificate: cert,
		PrivateKey:  privateKey,
		CertChain:   chain,
		TeamID:      extractTeamID(cert),
	}, nil
}

// IsExpired reports whether the signing certificate is outside its validity
// window.
func (id *Identity) IsExpired() bool {
	now := time.Now()
	return now.After(id.Certificate.NotAfter) || now.Before(id.Certificate.NotBefore)
}

// extractTeamID pulls the Apple team identifier from the certificate
// subject. Team IDs are a 10-character alphanumeric Organizational Unit;
// descriptive OUs that happen to be 10 characters long must not match.
func extractTeamID(cert *x509.Certificate) string {
	for _, ou := range cert.Subject.OrganizationalUnit {
		if len(ou) == 10 && isAlphanumeric(ou) {
			return ou
		}
	}
	return ""
}

func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
