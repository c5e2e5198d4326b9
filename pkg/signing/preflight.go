package signing

import (
	"fmt"
	"os"
)

// PreflightInput names the signing material and the resolved configuration
// values it must agree with.
type PreflightInput struct {
	BundleID    string
	TeamID      string
	ProfilePath string
	P12Path     string
	P12Password string
}

// Preflight cross-checks the signing material against the resolved
// configuration before any external tool runs: the profile must be valid
// and cover the bundle identifier, the team identifiers must agree, and the
// P12 certificate (when provided) must be unexpired and provisioned by the
// profile. Failing here costs seconds; failing in the archiver costs a full
// compile.
func Preflight(in PreflightInput) error {
	profileData, err := os.ReadFile(in.ProfilePath)
	if err != nil {
		return fmt.Errorf("failed to read provisioning profile: %w", err)
	}
	profile, err := ParseProvisioningProfile(profileData)
	if err != nil {
		return err
	}

	if profile.IsExpired() {
		return fmt.Errorf("provisioning profile %q expired on %s",
			profile.Name, profile.ExpirationDate.Format("2006-01-02"))
	}
	if team := profile.TeamID(); team != "" && in.TeamID != "" && team != in.TeamID {
		return fmt.Errorf("provisioning profile %q belongs to team %s, configuration says %s",
			profile.Name, team, in.TeamID)
	}
	if !profile.CoversBundleID(in.BundleID) {
		return fmt.Errorf("provisioning profile %q (app ID %s) does not cover bundle identifier %s",
			profile.Name, profile.ApplicationIdentifier(), in.BundleID)
	}

	if in.P12Path == "" {
		return nil
	}

	p12Data, err := os.ReadFile(in.P12Path)
	if err != nil {
		return fmt.Errorf("failed to read P12 file: %w", err)
	}
	identity, err := LoadIdentity(p12Data, in.P12Password)
	if err != nil {
		return err
	}

	if identity.IsExpired() {
		return fmt.Errorf("signing certificate %q expired on %s",
			identity.Certificate.Subject.CommonName,
			identity.Certificate.NotAfter.Format("2006-01-02"))
	}
	if identity.TeamID != "" && in.TeamID != "" && identity.TeamID != in.TeamID {
		return fmt.Errorf("signing certificate belongs to team %s, configuration says %s",
			identity.TeamID, in.TeamID)
	}
	if !profile.MatchesCertificate(identity.Certificate) {
		return fmt.Errorf("signing certificate %q is not provisioned by profile %q",
			identity.Certificate.Subject.CommonName, profile.Name)
	}
	return nil
}
