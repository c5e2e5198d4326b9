package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrecedence(t *testing.T) {
	flags := &Static{Label: "flags", Values: map[string]string{
		KeyScheme: "FlagScheme",
	}}
	file := &Static{Label: "file", Values: map[string]string{
		KeyScheme:        "FileScheme",
		KeyConfiguration: "Debug",
	}}
	defaults := &Static{Label: "defaults", Values: map[string]string{
		KeyScheme:        "Runner",
		KeyConfiguration: "Release",
		KeyExportMethod:  "app-store",
	}}

	cfg, err := Resolve(Schema{}, nil, flags, file, defaults)
	require.NoError(t, err)

	assert.Equal(t, "FlagScheme", cfg.GetString(KeyScheme))
	assert.Equal(t, "flags", cfg.Source(KeyScheme))
	assert.Equal(t, "Debug", cfg.GetString(KeyConfiguration))
	assert.Equal(t, "file", cfg.Source(KeyConfiguration))
	assert.Equal(t, "app-store", cfg.GetString(KeyExportMethod))
	assert.Equal(t, "defaults", cfg.Source(KeyExportMethod))
}

func TestResolveEmptyValueFallsThrough(t *testing.T) {
	// A provider that defines a key as the empty string must not shadow a
	// lower-precedence provider's real value.
	high := &Static{Label: "high", Values: map[string]string{
		KeyDevelopmentTeam: "",
	}}
	low := &Static{Label: "low", Values: map[string]string{
		KeyDevelopmentTeam: "ABCDE12345",
	}}

	cfg, err := Resolve(Schema{}, nil, high, low)
	require.NoError(t, err)

	assert.Equal(t, "ABCDE12345", cfg.GetString(KeyDevelopmentTeam))
	assert.Equal(t, "low", cfg.Source(KeyDevelopmentTeam))
}

func TestResolveMalformedTypedValueFallsThrough(t *testing.T) {
	high := &Static{Label: "high", Values: map[string]string{
		KeySkipUpload:  "yess",
		KeyBuildNumber: "forty-two",
	}}
	low := &Static{Label: "low", Values: map[string]string{
		KeySkipUpload:  "true",
		KeyBuildNumber: "42",
	}}

	cfg, err := Resolve(PipelineSchema(), nil, high, low)
	require.NoError(t, err)

	assert.True(t, cfg.GetBool(KeySkipUpload))
	assert.Equal(t, "low", cfg.Source(KeySkipUpload))
	assert.Equal(t, 42, cfg.GetInt(KeyBuildNumber))
	assert.Equal(t, "low", cfg.Source(KeyBuildNumber))
}

func TestResolveMissingRequiredListsAll(t *testing.T) {
	provider := &Static{Label: "only", Values: map[string]string{
		KeyScheme: "Runner",
	}}

	_, err := Resolve(PipelineSchema(), RequiredPipelineKeys(), provider)
	require.Error(t, err)

	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Equal(t, []string{
		KeyBundleIdentifier,
		KeyDevelopmentTeam,
		KeyOutputDir,
		KeyProjectDir,
	}, resErr.Missing)
}

func TestResolveRequiredEmptyCountsAsMissing(t *testing.T) {
	provider := &Static{Label: "only", Values: map[string]string{
		KeyBundleIdentifier: "",
	}}

	_, err := Resolve(Schema{}, []string{KeyBundleIdentifier}, provider)
	var resErr *ResolutionError
	require.True(t, errors.As(err, &resErr))
	assert.Contains(t, resErr.Missing, KeyBundleIdentifier)
}

func TestResolveTypedAccessorsRequireDeclaredKind(t *testing.T) {
	provider := &Static{Label: "only", Values: map[string]string{
		"SOME_STRING": "true",
	}}

	cfg, err := Resolve(Schema{}, nil, provider)
	require.NoError(t, err)

	// Undeclared keys resolve as strings; the typed accessors return zero
	// values rather than reinterpreting.
	assert.Equal(t, "true", cfg.GetString("SOME_STRING"))
	assert.False(t, cfg.GetBool("SOME_STRING"))
	assert.Equal(t, 0, cfg.GetInt("SOME_STRING"))
}

func TestResolveSnapshotKeysSorted(t *testing.T) {
	provider := &Static{Label: "only", Values: map[string]string{
		"B_KEY": "2",
		"A_KEY": "1",
		"C_KEY": "3",
	}}

	cfg, err := Resolve(Schema{}, nil, provider)
	require.NoError(t, err)
	assert.Equal(t, []string{"A_KEY", "B_KEY", "C_KEY"}, cfg.Keys())
}

func TestEnvProviderPrefixAndSnapshot(t *testing.T) {
	t.Setenv("SHIPTEST_BUNDLE_IDENTIFIER", "com.acme.app")
	t.Setenv("SHIPTEST_OUTPUT_DIR", "/tmp/out")
	t.Setenv("OTHERPREFIX_BUNDLE_IDENTIFIER", "com.wrong.app")

	env := NewEnv("SHIPTEST_")

	v, ok := env.Lookup(KeyBundleIdentifier)
	require.True(t, ok)
	assert.Equal(t, "com.acme.app", v)

	// Captured once at construction.
	t.Setenv("SHIPTEST_BUNDLE_IDENTIFIER", "com.changed.app")
	v, _ = env.Lookup(KeyBundleIdentifier)
	assert.Equal(t, "com.acme.app", v)

	_, ok = env.Lookup("NOT_SET")
	assert.False(t, ok)
}

func TestSecretKeysCoverUploadCredentials(t *testing.T) {
	secrets := SecretKeys()
	assert.True(t, secrets[KeyP12Password])
	assert.True(t, secrets[KeyUploadKeyID])
	assert.True(t, secrets[KeyUploadIssuerID])
	assert.False(t, secrets[KeyBundleIdentifier])
}
