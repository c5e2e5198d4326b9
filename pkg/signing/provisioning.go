// Package signing holds the preflight checks run before any external tool:
// provisioning-profile parsing, signing-identity loading, the cross-checks
// between them and the resolved configuration, and the export descriptor
// handed to the external archiver.
//
// The cryptographic act of signing is performed by the external toolchain;
// this package only verifies that the material it will be given is coherent,
// so a doomed build fails before the compiler runs instead of after it.
package signing

import (
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"go.mozilla.org/pkcs7"
	"howett.net/plist"
)

// ProvisioningProfile is a parsed .mobileprovision file.
type ProvisioningProfile struct {
	Name                        string                 `plist:"Name"`
	TeamName                    string                 `plist:"TeamName"`
	TeamIdentifier              []string               `plist:"TeamIdentifier"`
	AppIDName                   string                 `plist:"AppIDName"`
	ApplicationIdentifierPrefix []string               `plist:"ApplicationIdentifierPrefix"`
	Entitlements                map[string]interface{} `plist:"Entitlements"`
	DeveloperCertificates       [][]byte               `plist:"DeveloperCertificates"`
	ProvisionsAllDevices        bool                   `plist:"ProvisionsAllDevices"`
	CreationDate                time.Time              `plist:"CreationDate"`
	ExpirationDate              time.Time              `plist:"ExpirationDate"`
	UUID                        string                 `plist:"UUID"`
	Platform                    []string               `plist:"Platform"`
}

// ParseProvisioningProfile parses a .mobileprovision file: a CMS (PKCS#7)
// signed container whose payload is a plist.
func ParseProvisioningProfile(data []byte) (*ProvisioningProfile, error) {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#7 container: %w", err)
	}

	var profile ProvisioningProfile
	if _, err := plist.Unmarshal(p7.Content, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse provisioning profile plist: %w", err)
	}
	return &profile, nil
}

// TeamID returns the profile's team identifier.
func (p *ProvisioningProfile) TeamID() string {
	if len(p.TeamIdentifier) > 0 {
		return p.TeamIdentifier[0]
	}
	if len(p.ApplicationIdentifierPrefix) > 0 {
		return p.ApplicationIdentifierPrefix[0]
	}
	return ""
}

// ApplicationIdentifier returns the profile's application identifier
// entitlement ("TEAMID.com.acme.app" or a wildcard "TEAMID.*").
func (p *ProvisioningProfile) ApplicationIdentifier() string {
	if appID, ok := p.Entitlements["application-identifier"].(string); ok {
		return appID
	}
	return ""
}

// IsExpired reports whether the profile's validity window has passed.
func (p *ProvisioningProfile) IsExpired() bool {
	return time.Now().After(p.ExpirationDate)
}

// CoversBundleID reports whether the profile's application identifier
// covers the given bundle identifier, honoring trailing-wildcard app IDs.
func (p *ProvisioningProfile) CoversBundleID(bundleID string) bool {
	appID := p.ApplicationIdentifier()
	if appID == "" {
		return false
	}
	// Strip the team prefix: "TEAMID.com.acme.app" -> "com.acme.app".
	if _, rest, ok := strings.Cut(appID, "."); ok {
		appID = rest
	}
	if appID == "*" {
		return true
	}
	if suffix, ok := strings.CutSuffix(appID, ".*"); ok {
		return bundleID == suffix || strings.HasPrefix(bundleID, suffix+".")
	}
	return appID == bundleID
}

// Certificates parses the developer certificates embedded in the profile.
func (p *ProvisioningProfile) Certificates() ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for i, certData := range p.DeveloperCertificates {
		cert, err := x509.ParseCertificate(certData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate %d: %w", i, err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// MatchesCertificate reports whether the given certificate is one of the
// certificates the profile provisions.
func (p *ProvisioningProfile) MatchesCertificate(cert *x509.Certificate) bool {
	for _, certData := range p.DeveloperCertificates {
		profileCert, err := x509.ParseCertificate(certData)
		if err != nil {
			continue
		}
		if cert.Equal(profileCert) {
			return true
		}
	}
	return false
}
