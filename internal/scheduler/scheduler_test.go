package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoIngest/internal/model"
	"CryptoIngest/internal/recorder"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	summary *model.RunSummary
	err     error
	block   chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (*model.RunSummary, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.summary, f.err
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type memRecorder struct {
	recorder.NoopRecorder
	runs []*model.RunSummary
}

func (m *memRecorder) RecordRun(s *model.RunSummary) error {
	m.runs = append(m.runs, s)
	return nil
}

func (m *memRecorder) LastRuns(n int) ([]recorder.RunRecord, error) {
	var out []recorder.RunRecord
	for i := len(m.runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, recorder.RunRecord{ID: int64(i + 1), Status: m.runs[i].Status})
	}
	return out, nil
}

func okSummary() *model.RunSummary {
	return &model.RunSummary{Status: model.RunSucceeded, Attempted: 2, Succeeded: 2, RawRecords: 20, ProcessedRecords: 20}
}

func TestRunNow_RecordsAndNotifies(t *testing.T) {
	runner := &fakeRunner{summary: okSummary()}
	sender := &fakeSender{}
	rec := &memRecorder{}
	s := NewScheduler(context.Background(), runner, sender, rec)

	summary, err := s.RunNow()
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, summary.Status)
	assert.Same(t, summary, s.Last())
	require.Len(t, rec.runs, 1)
	require.Len(t, sender.Sent(), 1)
	assert.Contains(t, sender.Sent()[0], "Raw rows: 20")
}

func TestRunNow_FailedRunStillReported(t *testing.T) {
	runner := &fakeRunner{
		summary: &model.RunSummary{Status: model.RunFailed, Attempted: 2, Failed: 2, Error: "no records produced by any symbol"},
		err:     errors.New("no records produced by any symbol"),
	}
	sender := &fakeSender{}
	rec := &memRecorder{}
	s := NewScheduler(context.Background(), runner, sender, rec)

	_, err := s.RunNow()
	require.Error(t, err)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, model.RunFailed, rec.runs[0].Status)
	assert.Contains(t, sender.Sent()[0], "no records produced by any symbol")
}

func TestRunNow_NilSummary(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{err: errors.New("boom")}, nil, nil)
	summary, err := s.RunNow()
	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, model.RunFailed, summary.Status)
	assert.Equal(t, "boom", summary.Error)
}

func TestRunNow_RefusesOverlap(t *testing.T) {
	runner := &fakeRunner{summary: okSummary(), block: make(chan struct{})}
	s := NewScheduler(context.Background(), runner, nil, nil)

	done := make(chan struct{})
	go func() {
		s.RunNow()
		close(done)
	}()
	require.Eventually(t, func() bool { return runner.Calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err := s.RunNow()
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.block)
	<-done
	assert.Equal(t, 1, runner.Calls())
}

func TestHandleCommand(t *testing.T) {
	runner := &fakeRunner{summary: okSummary()}
	sender := &fakeSender{}
	rec := &memRecorder{}
	s := NewScheduler(context.Background(), runner, sender, rec)

	assert.Equal(t, "暂无运行记录", s.HandleCommand("/status"))
	assert.Contains(t, s.HandleCommand("/unknown"), "/run")

	assert.Equal(t, "🚀 已开始采集", s.HandleCommand("/run"))
	require.Eventually(t, func() bool { return s.Last() != nil }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(sender.Sent()) == 1 }, time.Second, 5*time.Millisecond)

	assert.Contains(t, s.HandleCommand("/status"), "SUCCEEDED")
	assert.Contains(t, s.HandleCommand("/history"), "#1")
}

func TestRegister(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{summary: okSummary()}, nil, nil)
	assert.NoError(t, s.Register("0 0 1 * * *"))
	assert.Error(t, s.Register("not a cron"))
}

func TestScheduledRun(t *testing.T) {
	runner := &fakeRunner{summary: okSummary()}
	s := NewScheduler(context.Background(), runner, nil, nil)
	require.NoError(t, s.Register("* * * * * *"))
	s.Start()
	require.Eventually(t, func() bool { return runner.Calls() >= 1 }, 3*time.Second, 20*time.Millisecond)
	s.Stop()
	assert.NotNil(t, s.Last())
}
