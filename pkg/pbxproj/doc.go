// Package pbxproj reads and edits Xcode project manifests (project.pbxproj)
// without disturbing any byte it was not asked to change.
//
// The parser scopes every build setting to the target that owns it, via the
// XCConfigurationList that belongs to that target. Mutations therefore hit
// exactly one target's build-configuration block; other targets keeping
// textually identical settings (the Runner vs RunnerTests case) are never
// touched. Saving an unmodified document reproduces the input byte for byte.
package pbxproj
