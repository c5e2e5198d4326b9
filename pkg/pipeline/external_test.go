package pipeline

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunner() *ToolRunner {
	return &ToolRunner{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestToolRunnerSuccess(t *testing.T) {
	err := testRunner().Run(context.Background(), "sh", "-c", "exit 0")
	assert.NoError(t, err)
}

func TestToolRunnerExitCodeAndOutput(t *testing.T) {
	err := testRunner().Run(context.Background(), "sh", "-c", "echo build broke >&2; exit 3")

	var failure *ExternalToolFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "sh", failure.Tool)
	assert.Equal(t, 3, failure.ExitCode)
	assert.Contains(t, failure.Output, "build broke")
}

func TestToolRunnerMissingBinary(t *testing.T) {
	err := testRunner().Run(context.Background(), "definitely-not-a-real-tool-xyz")

	var failure *ExternalToolFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, -1, failure.ExitCode)
}

func TestToolRunnerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := testRunner().Run(ctx, "sh", "-c", "sleep 10")
	assert.Error(t, err)
}

func TestToolRunnerExtraEnv(t *testing.T) {
	r := testRunner()
	r.Env = []string{"SHIP_TEST_MARKER=present"}

	err := r.Run(context.Background(), "sh", "-c", `[ "$SHIP_TEST_MARKER" = present ]`)
	assert.NoError(t, err)
}

func TestTailBoundsOutput(t *testing.T) {
	long := strings.Repeat("x", outputTailLimit+100)
	got := tail([]byte(long))
	assert.Len(t, got, outputTailLimit)

	short := "short output"
	assert.Equal(t, short, tail([]byte(short)))
}
