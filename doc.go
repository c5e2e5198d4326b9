// Package main provides the shipline CLI, a build-and-ship pipeline for
// Flutter iOS apps.
//
// The pipeline resolves configuration from flags, an HCL file and the
// environment, rewrites the Xcode project manifest, drives the external
// compiler and archiver, repairs nested bundle identifiers, assembles the
// IPA and uploads it. The building blocks live in the pkg subpackages:
//
//	import "shipline/pkg/pipeline"
//
// Install the CLI:
//
//	go install shipline@latest
package main
