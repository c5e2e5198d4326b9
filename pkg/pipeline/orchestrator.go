package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"shipline/pkg/notify"
)

// Orchestrator runs stages in order under the per-stage failure policy and
// guarantees exactly one notification per run: a failure notification naming
// the fatal stage, or a success notification once every stage has finished.
type Orchestrator struct {
	Logger   *slog.Logger
	Notifier notify.Notifier
	Platform string
	RunID    string
}

// Run executes the stages sequentially. Cancellation is cooperative at
// stage boundaries only: an in-flight stage is not interrupted here (its
// own context plumbing may stop it), but no further stage starts once the
// context is done.
func (o *Orchestrator) Run(ctx context.Context, stages []Stage) error {
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			cause := fmt.Errorf("canceled before stage %s: %w", stage.Name, err)
			o.notifyFailure(stage.Name, cause)
			return &StageError{Stage: stage.Name, Err: cause}
		}

		o.Logger.Info("stage starting", "stage", stage.Name, "policy", stage.Policy.String())
		err := stage.Run(ctx)
		if err == nil {
			o.Logger.Info("stage finished", "stage", stage.Name)
			continue
		}

		if stage.Policy == Advisory {
			o.Logger.Warn("advisory stage failed, continuing", "stage", stage.Name, "error", err)
			continue
		}

		o.Logger.Error("fatal stage failed", "stage", stage.Name, "error", err)
		o.notifyFailure(stage.Name, err)
		return &StageError{Stage: stage.Name, Err: err}
	}

	o.notifySuccess()
	return nil
}

func (o *Orchestrator) notifyFailure(stage string, err error) {
	o.deliver(notify.Event{
		Kind:     notify.KindFailure,
		Platform: o.Platform,
		RunID:    o.RunID,
		Message:  fmt.Sprintf("stage %s failed: %v", stage, err),
	})
}

func (o *Orchestrator) notifySuccess() {
	o.deliver(notify.Event{
		Kind:     notify.KindSuccess,
		Platform: o.Platform,
		RunID:    o.RunID,
		Message:  "pipeline completed",
	})
}

// deliver sends a notification; delivery failure is advisory by definition
// and only logged.
func (o *Orchestrator) deliver(ev notify.Event) {
	if o.Notifier == nil {
		return
	}
	if err := o.Notifier.Notify(context.Background(), ev); err != nil {
		o.Logger.Warn("notification delivery failed", "kind", string(ev.Kind), "error", err)
	}
}
