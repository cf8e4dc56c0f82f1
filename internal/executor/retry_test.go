package executor

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplebackup/internal/restic"
)

func TestExecute_SucceedsFirstAttemptWithoutWaiting(t *testing.T) {
	tool := &fakeTool{}
	e, notifier, _ := newTestExecutor(t, tool)
	e.Clock = testclock.NewClock(time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC))

	outcome := e.Execute(context.Background(), testJob())

	assert.True(t, outcome.Success)
	assert.Equal(t, 1, tool.snapshotCalls)
	assert.Equal(t, []string{"Backup Successful"}, notifier.titles)
}

func TestExecute_RetriesAfterEscalatingWaits(t *testing.T) {
	tool := &fakeTool{failRunsLeft: 2}
	e, notifier, _ := newTestExecutor(t, tool)
	clk := testclock.NewClock(time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC))
	e.Clock = clk

	done := make(chan Outcome, 1)
	go func() {
		done <- e.Execute(context.Background(), testJob())
	}()

	// two failed attempts, so exactly the first two intervals elapse
	require.NoError(t, clk.WaitAdvance(1*time.Minute, 5*time.Second, 1))
	require.NoError(t, clk.WaitAdvance(2*time.Minute, 5*time.Second, 1))

	outcome := <-done
	assert.True(t, outcome.Success)
	assert.Equal(t, 3, tool.snapshotCalls)
	assert.NotContains(t, notifier.titles, "Backup Retries Exhausted")
}

func TestExecute_ExhaustsDocumentedScheduleThenStops(t *testing.T) {
	tool := &fakeTool{failRunsLeft: 100}
	e, notifier, errDir := newTestExecutor(t, tool)
	clk := testclock.NewClock(time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC))
	e.Clock = clk

	done := make(chan Outcome, 1)
	go func() {
		done <- e.Execute(context.Background(), testJob())
	}()

	for _, wait := range []time.Duration{
		1 * time.Minute,
		2 * time.Minute,
		5 * time.Minute,
		10 * time.Minute,
		20 * time.Minute,
		30 * time.Minute,
		60 * time.Minute,
	} {
		require.NoError(t, clk.WaitAdvance(wait, 5*time.Second, 1))
	}

	outcome := <-done
	assert.False(t, outcome.Success)
	// one initial attempt plus seven retries, never an eighth
	assert.Equal(t, 8, tool.snapshotCalls)
	require.NotEmpty(t, notifier.titles)
	assert.Equal(t, "Backup Retries Exhausted", notifier.titles[len(notifier.titles)-1])
	assert.NotEmpty(t, errlogFiles(t, errDir))
}

func TestExecute_StopsOnShutdown(t *testing.T) {
	tool := &fakeTool{failRunsLeft: 100}
	e, notifier, _ := newTestExecutor(t, tool)
	clk := testclock.NewClock(time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC))
	e.Clock = clk

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Outcome, 1)
	go func() {
		done <- e.Execute(ctx, testJob())
	}()

	// let the first attempt fail and the retry wait begin, then shut down
	require.NoError(t, clk.WaitAdvance(30*time.Second, 5*time.Second, 1))
	cancel()

	outcome := <-done
	assert.False(t, outcome.Success)
	assert.Equal(t, 1, tool.snapshotCalls)
	assert.NotContains(t, notifier.titles, "Backup Retries Exhausted")
}

func TestRun_ToolFailureKindSurvivesRetryPath(t *testing.T) {
	tool := &fakeTool{
		backupErrOn: map[string]error{
			"C:/data": &restic.ToolError{Kind: restic.KindDestinationFull, ExitCode: 1, Stderr: "no space left on device"},
		},
	}
	e, _, _ := newTestExecutor(t, tool)
	clk := testclock.NewClock(time.Date(2026, 3, 5, 2, 0, 0, 0, time.UTC))
	e.Clock = clk

	done := make(chan Outcome, 1)
	go func() {
		done <- e.Execute(context.Background(), testJob())
	}()
	for i := 0; i < 7; i++ {
		require.NoError(t, clk.WaitAdvance(time.Hour, 5*time.Second, 1))
	}

	outcome := <-done
	require.NotNil(t, outcome.Report)
	assert.Equal(t, restic.KindDestinationFull, outcome.Report.Kind)
}
