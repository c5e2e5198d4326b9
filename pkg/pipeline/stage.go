// Package pipeline sequences the build stages: resolve configuration,
// mutate the project manifest, run the external compiler and archiver,
// repair bundle identities, assemble the package, upload. Stages run
// strictly in order on one goroutine; each declares whether its failure
// halts the run or is merely logged.
package pipeline

import (
	"context"
	"fmt"
)

// Policy decides what a stage failure does to the run.
type Policy int

const (
	// Fatal stops the pipeline: no later stage runs, one failure
	// notification fires, the process exits non-zero.
	Fatal Policy = iota
	// Advisory logs the failure and lets the remaining stages run.
	Advisory
)

func (p Policy) String() string {
	if p == Advisory {
		return "advisory"
	}
	return "fatal"
}

// Stage is one step of the pipeline.
type Stage struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// StageError names the stage that halted the run, wrapping its cause.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
