package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"shipline/pkg/archive"
	"shipline/pkg/bundle"
	"shipline/pkg/bundleid"
	"shipline/pkg/config"
	"shipline/pkg/notify"
	"shipline/pkg/pbxproj"
	"shipline/pkg/signing"
)

// Options configures a pipeline run.
type Options struct {
	// Providers in precedence order; consumed once by the resolve stage.
	Providers []config.Provider
	Logger    *slog.Logger
	// RunID identifies the run in logs and notifications. Defaults to a
	// timestamp.
	RunID string
	// WorkDir is the per-run working directory the orchestrator owns
	// exclusively. Defaults to <OUTPUT_DIR>/<RunID>.
	WorkDir string
}

// Pipeline wires the components into the stage sequence and runs them.
type Pipeline struct {
	opts  Options
	orch  *Orchestrator
	state runState
}

// runState is the data handed from stage to stage. It lives for one run and
// is only ever touched by the single pipeline goroutine.
type runState struct {
	cfg         *config.Snapshot
	workDir     string
	exportPath  string
	archivePath string
	appPath     string
	pkg         *archive.Package
}

// New builds a pipeline. Nothing runs until Run is called.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunID == "" {
		opts.RunID = "ios-" + time.Now().UTC().Format("20060102-150405")
	}
	return &Pipeline{
		opts: opts,
		orch: &Orchestrator{
			Logger:   opts.Logger,
			Notifier: &notify.LogNotifier{Logger: opts.Logger},
			Platform: "ios",
			RunID:    opts.RunID,
		},
	}
}

// Run executes the full stage sequence.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.orch.Run(ctx, p.Stages())
}

// Stages returns the stage sequence in execution order.
func (p *Pipeline) Stages() []Stage {
	return []Stage{
		{Name: "resolve-config", Policy: Fatal, Run: p.resolveConfig},
		{Name: "preflight-signing", Policy: Fatal, Run: p.preflightSigning},
		{Name: "mutate-manifest", Policy: Fatal, Run: p.mutateManifest},
		{Name: "compile", Policy: Fatal, Run: p.compile},
		{Name: "align-dependency-targets", Policy: Advisory, Run: p.alignDependencyTargets},
		{Name: "archive", Policy: Fatal, Run: p.archiveBuild},
		{Name: "resolve-identities", Policy: Fatal, Run: p.resolveIdentities},
		{Name: "assemble-package", Policy: Fatal, Run: p.assemblePackage},
		{Name: "upload", Policy: Fatal, Run: p.upload},
	}
}

// resolveConfig merges the providers into the immutable snapshot every
// later stage reads, prepares the working directory, and switches the
// notifier to the configured webhook. No stage after this one consults the
// ambient environment.
func (p *Pipeline) resolveConfig(context.Context) error {
	cfg, err := config.Resolve(config.PipelineSchema(), config.RequiredPipelineKeys(), p.opts.Providers...)
	if err != nil {
		return err
	}
	p.state.cfg = cfg

	secrets := config.SecretKeys()
	for _, key := range cfg.Keys() {
		value := cfg.GetString(key)
		if secrets[key] {
			value = "<redacted>"
		}
		p.opts.Logger.Debug("resolved", "key", key, "value", value, "source", cfg.Source(key))
	}

	p.state.workDir = p.opts.WorkDir
	if p.state.workDir == "" {
		p.state.workDir = filepath.Join(cfg.GetString(config.KeyOutputDir), p.opts.RunID)
	}
	if err := os.MkdirAll(p.state.workDir, 0755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	if url := cfg.GetString(config.KeyNotifyURL); url != "" {
		p.orch.Notifier = notify.NewWebhookNotifier(url)
	}
	return nil
}

// preflightSigning verifies the signing material against the resolved
// configuration. Skipped when no profile is configured (automatic signing
// setups provide nothing to check).
func (p *Pipeline) preflightSigning(context.Context) error {
	cfg := p.state.cfg
	profilePath := cfg.GetString(config.KeyProfilePath)
	if profilePath == "" {
		p.opts.Logger.Info("no provisioning profile configured, skipping signing preflight")
		return nil
	}
	return signing.Preflight(signing.PreflightInput{
		BundleID:    cfg.GetString(config.KeyBundleIdentifier),
		TeamID:      cfg.GetString(config.KeyDevelopmentTeam),
		ProfilePath: profilePath,
		P12Path:     cfg.GetString(config.KeyP12Path),
		P12Password: cfg.GetString(config.KeyP12Password),
	})
}

// mutateManifest rewrites the primary target's build settings in the Xcode
// project manifest and writes the export descriptor. Both operations are
// no-ops when the values are already in place, so re-running the pipeline
// against the same tree is safe.
func (p *Pipeline) mutateManifest(context.Context) error {
	cfg := p.state.cfg
	target := p.targetName()

	doc, err := pbxproj.Load(p.manifestPath())
	if err != nil {
		return err
	}

	settings := map[string]string{
		"PRODUCT_BUNDLE_IDENTIFIER": cfg.GetString(config.KeyBundleIdentifier),
		"DEVELOPMENT_TEAM":          cfg.GetString(config.KeyDevelopmentTeam),
	}
	if dt := cfg.GetString(config.KeyDeploymentTarget); dt != "" {
		settings["IPHONEOS_DEPLOYMENT_TARGET"] = dt
	}
	if profile := cfg.GetString(config.KeyProfileName); profile != "" {
		settings["PROVISIONING_PROFILE_SPECIFIER"] = profile
		settings["CODE_SIGN_STYLE"] = "Manual"
	}
	for key, value := range settings {
		if err := doc.SetForAllConfigurations(target, key, value); err != nil {
			return err
		}
	}
	if err := doc.Save(doc.Path()); err != nil {
		return fmt.Errorf("failed to save project manifest: %w", err)
	}

	p.state.exportPath = filepath.Join(p.state.workDir, "ExportOptions.plist")
	return signing.WriteExportOptions(p.state.exportPath, signing.ExportOptions{
		Method:      cfg.GetString(config.KeyExportMethod),
		TeamID:      cfg.GetString(config.KeyDevelopmentTeam),
		BundleID:    cfg.GetString(config.KeyBundleIdentifier),
		ProfileName: cfg.GetString(config.KeyProfileName),
	})
}

// compile invokes the external app compiler. Exit status is the whole
// contract; output is captured for diagnostics only.
func (p *Pipeline) compile(ctx context.Context) error {
	cfg := p.state.cfg
	runner := &ToolRunner{Logger: p.opts.Logger, Dir: cfg.GetString(config.KeyProjectDir)}

	args := []string{"build", "ios", "--release", "--no-codesign"}
	if n := cfg.GetInt(config.KeyBuildNumber); n > 0 {
		args = append(args, "--build-number", strconv.Itoa(n))
	}
	return runner.Run(ctx, p.tool(config.KeyFlutterTool, "flutter"), args...)
}

// alignDependencyTargets sweeps the dependency manager's generated project
// and pins every target's deployment target to the configured value. The
// generated manifest is re-loaded fresh because the compile stage's
// dependency resolution rewrites it. Best-effort: a missing or odd Pods
// project must not kill the build.
func (p *Pipeline) alignDependencyTargets(context.Context) error {
	cfg := p.state.cfg
	dt := cfg.GetString(config.KeyDeploymentTarget)
	if dt == "" {
		return nil
	}
	podsManifest := filepath.Join(cfg.GetString(config.KeyProjectDir), "ios", "Pods", "Pods.xcodeproj", "project.pbxproj")
	if _, err := os.Stat(podsManifest); os.IsNotExist(err) {
		p.opts.Logger.Info("no dependency project manifest, skipping alignment")
		return nil
	}

	doc, err := pbxproj.Load(podsManifest)
	if err != nil {
		return err
	}
	for _, target := range doc.Targets() {
		if err := doc.SetForAllConfigurations(target, "IPHONEOS_DEPLOYMENT_TARGET", dt); err != nil {
			return err
		}
	}
	return doc.Save(podsManifest)
}

// archiveBuild invokes the external archiver into a freshly prepared
// subdirectory, so artifacts from a previous attempt never leak in.
func (p *Pipeline) archiveBuild(ctx context.Context) error {
	cfg := p.state.cfg
	target := p.targetName()

	archiveDir := filepath.Join(p.state.workDir, "archive")
	if err := os.RemoveAll(archiveDir); err != nil {
		return fmt.Errorf("failed to clear archive directory: %w", err)
	}
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	p.state.archivePath = filepath.Join(archiveDir, target+".xcarchive")

	runner := &ToolRunner{Logger: p.opts.Logger, Dir: cfg.GetString(config.KeyProjectDir)}
	return runner.Run(ctx, p.tool(config.KeyXcodebuildTool, "xcodebuild"),
		"-workspace", filepath.Join("ios", target+".xcworkspace"),
		"-scheme", cfg.GetString(config.KeyScheme),
		"-configuration", cfg.GetString(config.KeyConfiguration),
		"archive",
		"-archivePath", p.state.archivePath,
	)
}

// resolveIdentities locates the built app inside the archive tree and
// repairs nested-bundle identifier collisions. Individual bundle failures
// are advisory; only an unresolved conflict on the primary identifier
// halts the run.
func (p *Pipeline) resolveIdentities(context.Context) error {
	cfg := p.state.cfg
	primaryID := cfg.GetString(config.KeyBundleIdentifier)

	appPath, err := archive.FindPrimaryBundle(p.state.archivePath)
	if err != nil {
		return err
	}
	p.state.appPath = appPath

	if built, err := bundle.Identifier(appPath); err == nil && built != primaryID {
		p.opts.Logger.Warn("built app declares a different identifier than configured",
			"built", built, "configured", primaryID)
	}

	nested, err := bundleid.DiscoverNested(appPath)
	if err != nil {
		return err
	}
	res := bundleid.Resolve(primaryID, nested)

	for _, id := range res.Identities {
		if id.Repaired {
			p.opts.Logger.Info("repaired bundle identifier",
				"scope", id.Scope.String(), "bundle", id.Name, "identifier", id.Identifier)
		}
	}
	for _, f := range res.Failed {
		p.opts.Logger.Warn("bundle identity unresolved", "bundle", f.Path, "error", f.Err)
	}
	if res.PrimaryConflict(primaryID) {
		return fmt.Errorf("primary identifier %s is still shared by an unrepairable nested bundle", primaryID)
	}
	return nil
}

// assemblePackage repackages the repaired app into the distributable
// container in a fresh dist subdirectory.
func (p *Pipeline) assemblePackage(context.Context) error {
	distDir := filepath.Join(p.state.workDir, "dist")
	if err := os.RemoveAll(distDir); err != nil {
		return fmt.Errorf("failed to clear dist directory: %w", err)
	}
	if err := os.MkdirAll(distDir, 0755); err != nil {
		return fmt.Errorf("failed to create dist directory: %w", err)
	}

	if info, err := archive.InspectExecutable(p.state.appPath); err == nil {
		p.opts.Logger.Info("app executable", "path", info.Path, "arches", info.Arches)
	}

	assembler := &archive.Assembler{}
	pkg, err := assembler.Assemble(p.state.appPath, filepath.Join(distDir, p.state.cfg.GetString(config.KeyScheme)+".ipa"))
	if err != nil {
		return err
	}
	p.state.pkg = pkg
	p.opts.Logger.Info("package assembled",
		"path", pkg.Path, "uncompressed_bytes", pkg.UncompressedSize, "files", pkg.FileCount)
	return nil
}

// upload hands the package to the external uploader. Credentials travel in
// arguments and environment that are never logged.
func (p *Pipeline) upload(ctx context.Context) error {
	cfg := p.state.cfg
	if cfg.GetBool(config.KeySkipUpload) {
		p.opts.Logger.Info("upload skipped by configuration")
		return nil
	}

	keyID := cfg.GetString(config.KeyUploadKeyID)
	issuerID := cfg.GetString(config.KeyUploadIssuerID)
	if keyID == "" || issuerID == "" {
		return fmt.Errorf("upload credentials not configured: set %s and %s (or %s=true)",
			config.KeyUploadKeyID, config.KeyUploadIssuerID, config.KeySkipUpload)
	}

	runner := &ToolRunner{Logger: p.opts.Logger}
	if keyPath := cfg.GetString(config.KeyUploadKeyPath); keyPath != "" {
		runner.Env = []string{"API_PRIVATE_KEYS_DIR=" + filepath.Dir(keyPath)}
	}

	args := []string{
		"altool", "--upload-app",
		"--file", p.state.pkg.Path,
		"--type", "ios",
		"--apiKey", keyID,
		"--apiIssuer", issuerID,
	}
	display := fmt.Sprintf("altool --upload-app --file %s --type ios", p.state.pkg.Path)
	return runner.RunRedacted(ctx, p.tool(config.KeyUploadTool, "xcrun"), args, display)
}

func (p *Pipeline) targetName() string {
	if t := p.state.cfg.GetString(config.KeyTargetName); t != "" {
		return t
	}
	return "Runner"
}

func (p *Pipeline) manifestPath() string {
	return filepath.Join(p.state.cfg.GetString(config.KeyProjectDir),
		"ios", p.targetName()+".xcodeproj", "project.pbxproj")
}

func (p *Pipeline) tool(key, fallback string) string {
	if t := p.state.cfg.GetString(key); t != "" {
		return t
	}
	return fallback
}
