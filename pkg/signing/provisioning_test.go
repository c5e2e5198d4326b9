package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func profileWithAppID(appID string) *ProvisioningProfile {
	return &ProvisioningProfile{
		Name:           "Test Profile",
		TeamIdentifier: []string{"ABCDE12345"},
		Entitlements: map[string]interface{}{
			"application-identifier": appID,
		},
		ExpirationDate: time.Now().Add(24 * time.Hour),
	}
}

func TestCoversBundleIDExact(t *testing.T) {
	p := profileWithAppID("ABCDE12345.com.acme.app")
	assert.True(t, p.CoversBundleID("com.acme.app"))
	assert.False(t, p.CoversBundleID("com.acme.other"))
	assert.False(t, p.CoversBundleID("com.acme.app.extension"))
}

func TestCoversBundleIDTrailingWildcard(t *testing.T) {
	p := profileWithAppID("ABCDE12345.com.acme.*")
	assert.True(t, p.CoversBundleID("com.acme.app"))
	assert.True(t, p.CoversBundleID("com.acme.app.extension"))
	assert.True(t, p.CoversBundleID("com.acme"), "the wildcard also covers the bare prefix")
	assert.False(t, p.CoversBundleID("com.other.app"))
	assert.False(t, p.CoversBundleID("com.acmecorp.app"), "prefix match is segment-aware")
}

func TestCoversBundleIDFullWildcard(t *testing.T) {
	p := profileWithAppID("ABCDE12345.*")
	assert.True(t, p.CoversBundleID("com.anything.at.all"))
}

func TestCoversBundleIDNoEntitlement(t *testing.T) {
	p := &ProvisioningProfile{Entitlements: map[string]interface{}{}}
	assert.False(t, p.CoversBundleID("com.acme.app"))
}

func TestTeamIDFallsBackToPrefix(t *testing.T) {
	p := &ProvisioningProfile{ApplicationIdentifierPrefix: []string{"ZYXWV98765"}}
	assert.Equal(t, "ZYXWV98765", p.TeamID())

	p.TeamIdentifier = []string{"ABCDE12345"}
	assert.Equal(t, "ABCDE12345", p.TeamID())

	empty := &ProvisioningProfile{}
	assert.Equal(t, "", empty.TeamID())
}

func TestIsExpired(t *testing.T) {
	p := profileWithAppID("ABCDE12345.com.acme.app")
	assert.False(t, p.IsExpired())

	p.ExpirationDate = time.Now().Add(-time.Hour)
	assert.True(t, p.IsExpired())
}

func TestParseProvisioningProfileRejectsGarbage(t *testing.T) {
	_, err := ParseProvisioningProfile([]byte("not a pkcs7 container"))
	assert.Error(t, err)
}
