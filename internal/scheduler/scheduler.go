package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"CryptoIngest/internal/model"
	"CryptoIngest/internal/notifier"
	"CryptoIngest/internal/recorder"

	"github.com/robfig/cron/v3"
)

// Runner executes one ingestion run.
type Runner interface {
	Run(ctx context.Context) (*model.RunSummary, error)
}

// Sender delivers operator messages. nil disables notification.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// ErrRunInProgress is returned by RunNow when another run holds the lock.
var ErrRunInProgress = errors.New("ingestion run already in progress")

const notifyRetries = 3

// Scheduler triggers ingestion runs and reports their outcome.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   Runner
	Notifier Sender
	Recorder recorder.Recorder
	Ctx      context.Context

	running sync.Mutex
	mu      sync.Mutex
	last    *model.RunSummary
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, sender Sender, rec recorder.Recorder) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Notifier: sender,
		Recorder: rec,
		Ctx:      ctx,
	}
}

// Register schedules the ingestion run on cronExpr (six fields, seconds first).
func (s *Scheduler) Register(cronExpr string) error {
	if _, err := s.Cron.AddFunc(cronExpr, s.ingestTask); err != nil {
		return fmt.Errorf("register ingest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully, waiting for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes one run immediately (for manual trigger / RUN_ON_START).
// Overlapping runs are refused.
func (s *Scheduler) RunNow() (*model.RunSummary, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	log.Println("[INFO] running ingestion")
	summary, err := s.Runner.Run(s.Ctx)
	if err != nil {
		log.Printf("[ERROR] ingestion run: %v", err)
	}
	if summary == nil {
		summary = &model.RunSummary{Status: model.RunFailed}
		if err != nil {
			summary.Error = err.Error()
		}
	}

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	if rerr := s.Recorder.RecordRun(summary); rerr != nil {
		log.Printf("[ERROR] record run: %v", rerr)
	}
	s.trySend(notifier.FormatRunSummary(summary))
	return summary, err
}

// Last returns the most recent run summary, or nil before the first run.
func (s *Scheduler) Last() *model.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) ingestTask() {
	if _, err := s.RunNow(); errors.Is(err, ErrRunInProgress) {
		log.Println("[WARN] skipping scheduled run: previous run still in progress")
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/run", "立即采集":
		go func() {
			if _, err := s.RunNow(); errors.Is(err, ErrRunInProgress) {
				s.trySend("⏳ 采集正在进行中")
			}
		}()
		return "🚀 已开始采集"
	case "/status", "查看状态":
		last := s.Last()
		if last == nil {
			return "暂无运行记录"
		}
		return notifier.FormatRunSummary(last)
	case "/history", "查看历史":
		runs, err := s.Recorder.LastRuns(5)
		if err != nil {
			log.Printf("[ERROR] load history: %v", err)
			return fmt.Sprintf("❌ 读取历史失败: %v", err)
		}
		return notifier.FormatHistory(runs)
	default:
		return "可用命令:\n• /run 立即采集\n• /status 查看状态\n• /history 查看历史"
	}
}

func (s *Scheduler) trySend(msg string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, msg, notifyRetries); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
