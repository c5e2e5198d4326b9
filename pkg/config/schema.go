package config

// Kind is the declared type of a configuration key.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	default:
		return "string"
	}
}

// Schema maps key names to their declared kinds. Keys not present in the
// schema resolve as plain strings.
type Schema map[string]Kind

// Configuration keys understood by the pipeline. Providers address them
// without the environment prefix.
const (
	KeyBundleIdentifier = "BUNDLE_IDENTIFIER"
	KeyDevelopmentTeam  = "DEVELOPMENT_TEAM"
	KeyOutputDir        = "OUTPUT_DIR"
	KeyProjectDir       = "PROJECT_DIR"
	KeyScheme           = "SCHEME"
	KeyTargetName       = "TARGET_NAME"
	KeyConfiguration    = "CONFIGURATION"
	KeyDeploymentTarget = "DEPLOYMENT_TARGET"
	KeyExportMethod     = "EXPORT_METHOD"
	KeyProfileName      = "PROFILE_NAME"
	KeyProfilePath      = "PROFILE_PATH"
	KeyP12Path          = "P12_PATH"
	KeyP12Password      = "P12_PASSWORD"
	KeyBuildNumber      = "BUILD_NUMBER"
	KeySkipUpload       = "SKIP_UPLOAD"
	KeyUploadKeyID      = "UPLOAD_KEY_ID"
	KeyUploadIssuerID   = "UPLOAD_ISSUER_ID"
	KeyUploadKeyPath    = "UPLOAD_KEY_PATH"
	KeyNotifyURL        = "NOTIFY_URL"
	KeyFlutterTool      = "FLUTTER_TOOL"
	KeyXcodebuildTool   = "XCODEBUILD_TOOL"
	KeyUploadTool       = "UPLOAD_TOOL"
)

// PipelineSchema declares the typed keys of the standard pipeline
// configuration. Everything else is a string.
func PipelineSchema() Schema {
	return Schema{
		KeySkipUpload:  KindBool,
		KeyBuildNumber: KindInt,
	}
}

// RequiredPipelineKeys are the keys that must be non-empty for a pipeline
// run to start: without an identifier, a signing team, a project and
// somewhere to put the artifacts, no stage can do useful work.
func RequiredPipelineKeys() []string {
	return []string{
		KeyBundleIdentifier,
		KeyDevelopmentTeam,
		KeyOutputDir,
		KeyProjectDir,
		KeyScheme,
	}
}

// SecretKeys lists keys whose values must never be logged or printed.
func SecretKeys() map[string]bool {
	return map[string]bool{
		KeyP12Password:    true,
		KeyUploadKeyID:    true,
		KeyUploadIssuerID: true,
		KeyUploadKeyPath:  true,
	}
}
