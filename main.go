package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/docopt/docopt-go"

	"shipline/pkg/archive"
	"shipline/pkg/bundle"
	"shipline/pkg/bundleid"
	"shipline/pkg/config"
	"shipline/pkg/pbxproj"
	"shipline/pkg/pipeline"
)

const version = "1.0.0"

const usage = `shipline - Flutter iOS Build & Ship Pipeline

Builds, packages and uploads a Flutter iOS app in one run: resolve
configuration, rewrite the Xcode project, compile, archive, repair nested
bundle identifiers, assemble the IPA and hand it to the uploader.

Usage:
  shipline run [--config=<path>] [--project=<dir>] [--output=<dir>] [--bundle-id=<id>] [--team=<id>] [--scheme=<name>] [--skip-upload]
  shipline config [--config=<path>] [--project=<dir>] [--output=<dir>] [--bundle-id=<id>] [--team=<id>] [--scheme=<name>] [--skip-upload]
  shipline set-setting --manifest=<path> --target=<name> --key=<key> --value=<value> [--configuration=<name>]
  shipline fix-bundle-ids --app=<path> --bundle-id=<id>
  shipline package --app=<path> --output=<path>
  shipline -h | --help
  shipline --version

Commands:
  run             Execute the full build pipeline
  config          Resolve and print the effective configuration, then exit
  set-setting     Set one build setting in an Xcode project manifest
  fix-bundle-ids  Repair nested bundle identifier collisions in a built .app
  package         Assemble a validated .app bundle into an IPA

Options:
  --config=<path>         Path to an HCL configuration file
  --project=<dir>         Flutter project directory (or SHIPLINE_PROJECT_DIR)
  --output=<dir>          Output directory for run artifacts (or SHIPLINE_OUTPUT_DIR)
  --bundle-id=<id>        Primary bundle identifier (or SHIPLINE_BUNDLE_IDENTIFIER)
  --team=<id>             Apple development team ID (or SHIPLINE_DEVELOPMENT_TEAM)
  --scheme=<name>         Xcode scheme to archive (or SHIPLINE_SCHEME)
  --skip-upload           Build and package but do not upload
  --manifest=<path>       Path to a project.pbxproj file (set-setting command)
  --target=<name>         Target whose settings to edit (set-setting command)
  --key=<key>             Build setting name (set-setting command)
  --value=<value>         Build setting value (set-setting command)
  --configuration=<name>  Limit the edit to one configuration tier; default is all tiers
  --app=<path>            Path to a built .app bundle
  -h --help               Show this help message
  --version               Show version

Environment Variables:
  Every configuration key is readable from the environment with the
  SHIPLINE_ prefix; flags take precedence, then the config file, then the
  environment. Secrets (SHIPLINE_P12_PASSWORD, SHIPLINE_UPLOAD_KEY_ID,
  SHIPLINE_UPLOAD_ISSUER_ID, SHIPLINE_UPLOAD_KEY_PATH) are only accepted
  from the environment or the config file and are never logged.

Examples:
  # Full pipeline run, configuration from a file plus environment secrets
  export SHIPLINE_UPLOAD_KEY_ID=...
  export SHIPLINE_UPLOAD_ISSUER_ID=...
  shipline run --config=ship.hcl

  # Dry-run the configuration resolution
  shipline config --config=ship.hcl

  # Build without uploading
  shipline run --config=ship.hcl --skip-upload

  # Point a target's bundle identifier at a new value in every tier
  shipline set-setting --manifest=ios/Runner.xcodeproj/project.pbxproj --target=Runner --key=PRODUCT_BUNDLE_IDENTIFIER --value=com.example.app

  # Repair identifier collisions in an already-built app
  shipline fix-bundle-ids --app=build/Runner.app --bundle-id=com.example.app

  # Package a repaired app by hand
  shipline package --app=build/Runner.app --output=dist/Runner.ipa
`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var cmdErr error
	switch {
	case command(opts, "run"):
		cmdErr = runPipeline(opts, logger)
	case command(opts, "config"):
		cmdErr = runConfig(opts)
	case command(opts, "set-setting"):
		cmdErr = runSetSetting(opts)
	case command(opts, "fix-bundle-ids"):
		cmdErr = runFixBundleIDs(opts, logger)
	case command(opts, "package"):
		cmdErr = runPackage(opts, logger)
	}
	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", cmdErr)
		os.Exit(1)
	}
}

func command(opts docopt.Opts, name string) bool {
	v, _ := opts.Bool(name)
	return v
}

// providers assembles the configuration sources in precedence order:
// command-line flags, then the config file when given, then the prefixed
// environment, then built-in defaults.
func providers(opts docopt.Opts) ([]config.Provider, error) {
	flags := map[string]string{}
	addFlag := func(flag, key string) {
		if v, _ := opts.String(flag); v != "" {
			flags[key] = v
		}
	}
	addFlag("--project", config.KeyProjectDir)
	addFlag("--output", config.KeyOutputDir)
	addFlag("--bundle-id", config.KeyBundleIdentifier)
	addFlag("--team", config.KeyDevelopmentTeam)
	addFlag("--scheme", config.KeyScheme)
	if v, _ := opts.Bool("--skip-upload"); v {
		flags[config.KeySkipUpload] = "true"
	}

	sources := []config.Provider{&config.Static{Label: "flags", Values: flags}}

	if path, _ := opts.String("--config"); path != "" {
		file, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, file)
	}

	sources = append(sources,
		config.NewEnv("SHIPLINE_"),
		&config.Static{Label: "defaults", Values: map[string]string{
			config.KeyProjectDir:     ".",
			config.KeyTargetName:     "Runner",
			config.KeyScheme:         "Runner",
			config.KeyConfiguration:  "Release",
			config.KeyExportMethod:   "app-store",
			config.KeyFlutterTool:    "flutter",
			config.KeyXcodebuildTool: "xcodebuild",
			config.KeyUploadTool:     "xcrun",
		}},
	)
	return sources, nil
}

func runPipeline(opts docopt.Opts, logger *slog.Logger) error {
	sources, err := providers(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(pipeline.Options{
		Providers: sources,
		Logger:    logger,
	})
	return p.Run(ctx)
}

// runConfig resolves the configuration exactly as the pipeline would and
// prints every key with its value and winning source. Secret values are
// shown redacted; their provenance is still useful.
func runConfig(opts docopt.Opts) error {
	sources, err := providers(opts)
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(config.PipelineSchema(), config.RequiredPipelineKeys(), sources...)
	if err != nil {
		return err
	}

	keys := cfg.Keys()
	sort.Strings(keys)
	secrets := config.SecretKeys()

	fmt.Println("Resolved Configuration")
	fmt.Println("======================")
	for _, key := range keys {
		value := cfg.GetString(key)
		if secrets[key] {
			value = "<redacted>"
		}
		fmt.Printf("%-24s %-32s (from %s)\n", key, value, cfg.Source(key))
	}
	return nil
}

func runSetSetting(opts docopt.Opts) error {
	manifest, _ := opts.String("--manifest")
	target, _ := opts.String("--target")
	key, _ := opts.String("--key")
	value, _ := opts.String("--value")
	configuration, _ := opts.String("--configuration")

	doc, err := pbxproj.Load(manifest)
	if err != nil {
		return err
	}
	if configuration != "" {
		err = doc.Set(target, configuration, key, value)
	} else {
		err = doc.SetForAllConfigurations(target, key, value)
	}
	if err != nil {
		return err
	}
	if err := doc.Save(manifest); err != nil {
		return err
	}
	fmt.Printf("Set %s = %s for target %s\n", key, value, target)
	return nil
}

func runFixBundleIDs(opts docopt.Opts, logger *slog.Logger) error {
	appPath, _ := opts.String("--app")
	primaryID, _ := opts.String("--bundle-id")

	nested, err := bundleid.DiscoverNested(appPath)
	if err != nil {
		return err
	}
	res := bundleid.Resolve(primaryID, nested)

	for _, id := range res.Identities {
		status := "kept"
		if id.Repaired {
			status = "repaired"
		}
		fmt.Printf("%-9s %-16s %s -> %s\n", status, id.Scope.String(), id.Name, id.Identifier)
	}
	for _, f := range res.Failed {
		logger.Warn("bundle identity unresolved", "bundle", f.Path, "error", f.Err)
	}
	if res.PrimaryConflict(primaryID) {
		return fmt.Errorf("primary identifier %s is still shared by an unrepairable nested bundle", primaryID)
	}
	fmt.Printf("%d bundle(s) resolved, %d repaired, %d failed\n",
		len(res.Identities), res.Repaired(), len(res.Failed))
	return nil
}

func runPackage(opts docopt.Opts, logger *slog.Logger) error {
	appPath, _ := opts.String("--app")
	outputPath, _ := opts.String("--output")

	if id, err := bundle.Identifier(appPath); err == nil {
		logger.Info("packaging app", "path", appPath, "identifier", id)
	}

	assembler := &archive.Assembler{}
	pkg, err := assembler.Assemble(appPath, outputPath)
	if err != nil {
		return err
	}
	fmt.Printf("Assembled %s (%d files, %d bytes uncompressed)\n",
		pkg.Path, pkg.FileCount, pkg.UncompressedSize)
	return nil
}
