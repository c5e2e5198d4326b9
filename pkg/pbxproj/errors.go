package pbxproj

import "fmt"

// ParseError reports a structural problem in the manifest, with the line it
// was detected on.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("pbxproj: line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("pbxproj: %s:%d: %s", e.Path, e.Line, e.Msg)
}

// TargetNotFoundError means the manifest has no build-configuration list for
// the named target. It is always surfaced, never defaulted away.
type TargetNotFoundError struct {
	Target string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("pbxproj: target %q has no build configuration list", e.Target)
}

// ConfigurationNotFoundError means the target exists but has no
// configuration of the requested name.
type ConfigurationNotFoundError struct {
	Target        string
	Configuration string
}

func (e *ConfigurationNotFoundError) Error() string {
	return fmt.Sprintf("pbxproj: target %q has no configuration %q", e.Target, e.Configuration)
}
