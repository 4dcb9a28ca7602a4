// Package trigger delivers claim files that land in object storage to the
// certification orchestrator.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	csvimport "github.com/afp/backend/internal/infrastructure/import"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FileProcessor processes one delivered file
type FileProcessor interface {
	ProcessFile(ctx context.Context, file appcert.FileArrival) (*appcert.BatchResult, error)
}

// PollerConfig holds the poller settings
type PollerConfig struct {
	Schedule           string
	TimeZone           string
	MaxConcurrentFiles int
	IncomingPrefix     string
	ProcessedPrefix    string
	SkippedPrefix      string
}

// PollSummary counts what happened to the files seen in one poll
type PollSummary struct {
	Listed    int
	Committed int
	Skipped   int
	Aborted   int
	InFlight  int
	Failed    int
}

type fileOutcome int

const (
	outcomeCommitted fileOutcome = iota
	outcomeSkipped
	outcomeAborted
	outcomeInFlight
	outcomeFailed
)

func (s *PollSummary) add(o fileOutcome) {
	switch o {
	case outcomeCommitted:
		s.Committed++
	case outcomeSkipped:
		s.Skipped++
	case outcomeAborted:
		s.Aborted++
	case outcomeInFlight:
		s.InFlight++
	default:
		s.Failed++
	}
}

// ArrivalPoller lists the incoming prefix on a cron schedule and hands each
// file to the processor. Files that abort or are held by another worker stay
// in place and are picked up again on the next tick.
type ArrivalPoller struct {
	cfg       PollerConfig
	storage   appcert.ObjectStorage
	processor FileProcessor
	logger    *zap.Logger

	mu        sync.Mutex
	cron      *cron.Cron
	cancel    context.CancelFunc
	isRunning bool
}

// NewArrivalPoller creates a poller
func NewArrivalPoller(cfg PollerConfig, storage appcert.ObjectStorage, processor FileProcessor, logger *zap.Logger) *ArrivalPoller {
	if cfg.MaxConcurrentFiles <= 0 {
		cfg.MaxConcurrentFiles = 1
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 30s"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArrivalPoller{
		cfg:       cfg,
		storage:   storage,
		processor: processor,
		logger:    logger.Named("trigger"),
	}
}

// Start schedules polling. Ticks that fire while a poll is still running
// are skipped.
func (p *ArrivalPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return nil
	}

	loc := time.UTC
	if p.cfg.TimeZone != "" {
		l, err := time.LoadLocation(p.cfg.TimeZone)
		if err != nil {
			return fmt.Errorf("load time zone %q: %w", p.cfg.TimeZone, err)
		}
		loc = l
	}

	cl := cronLogger{p.logger.Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cron.NewParser(cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(ctx)
	if _, err := c.AddFunc(p.cfg.Schedule, func() { p.tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule arrival poller %q: %w", p.cfg.Schedule, err)
	}

	c.Start()
	p.cron = c
	p.cancel = cancel
	p.isRunning = true

	p.logger.Info("Arrival poller started",
		zap.String("schedule", p.cfg.Schedule),
		zap.String("time_zone", loc.String()),
		zap.String("prefix", p.cfg.IncomingPrefix),
		zap.Int("max_concurrent_files", p.cfg.MaxConcurrentFiles),
	)
	return nil
}

// Stop cancels in-progress work and waits for the running poll to return
func (p *ArrivalPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	c, cancel := p.cron, p.cancel
	p.mu.Unlock()

	cancel()
	done := c.Stop()

	select {
	case <-done.Done():
		p.logger.Info("Arrival poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *ArrivalPoller) tick(ctx context.Context) {
	summary, err := p.PollOnce(ctx)
	if err != nil {
		p.logger.Error("Arrival poll failed", zap.Error(err))
		return
	}
	if summary.Listed == 0 {
		return
	}
	p.logger.Info("Arrival poll finished",
		zap.Int("listed", summary.Listed),
		zap.Int("committed", summary.Committed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("aborted", summary.Aborted),
		zap.Int("in_flight", summary.InFlight),
		zap.Int("failed", summary.Failed),
	)
}

// PollOnce processes every file currently under the incoming prefix, at most
// MaxConcurrentFiles at a time. Only the listing itself can fail the poll;
// per-file failures are counted in the summary.
func (p *ArrivalPoller) PollOnce(ctx context.Context) (PollSummary, error) {
	var summary PollSummary

	objects, err := p.storage.List(ctx, p.cfg.IncomingPrefix)
	if err != nil {
		return summary, fmt.Errorf("list %q: %w", p.cfg.IncomingPrefix, err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(p.cfg.MaxConcurrentFiles)

	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		summary.Listed++
		key := obj.Key
		g.Go(func() error {
			outcome := p.handle(ctx, key)
			mu.Lock()
			summary.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return summary, nil
}

func (p *ArrivalPoller) handle(ctx context.Context, key string) fileOutcome {
	log := p.logger.With(zap.String("source_file", key))

	if ctx.Err() != nil {
		return outcomeFailed
	}

	if !csvimport.IsSupported(key) {
		log.Warn("unsupported file type, moving to skipped")
		if err := p.storage.Move(ctx, key, p.destination(key, p.cfg.SkippedPrefix)); err != nil {
			log.Error("failed to move unsupported file", zap.Error(err))
			return outcomeFailed
		}
		return outcomeSkipped
	}

	content, err := p.storage.Download(ctx, key)
	if err != nil {
		if errors.Is(err, appcert.ErrObjectNotFound) {
			log.Debug("file disappeared before download")
		} else {
			log.Error("failed to download file", zap.Error(err))
		}
		return outcomeFailed
	}

	result, err := p.processor.ProcessFile(ctx, appcert.FileArrival{Name: key, Content: content})
	switch {
	case errors.Is(err, appcert.ErrFileInFlight):
		return outcomeInFlight
	case result == nil:
		log.Error("file not processed", zap.Error(err))
		return outcomeFailed
	}

	var outcome fileOutcome
	var dest string
	switch result.State {
	case appcert.StateCommitted:
		outcome, dest = outcomeCommitted, p.destination(key, p.cfg.ProcessedPrefix)
	case appcert.StateSkipped:
		outcome, dest = outcomeSkipped, p.destination(key, p.cfg.SkippedPrefix)
	default:
		return outcomeAborted
	}

	// A failed move leaves the file in place for redelivery on the next tick.
	if err := p.storage.Move(context.WithoutCancel(ctx), key, dest); err != nil {
		log.Error("failed to move finished file", zap.String("destination", dest), zap.Error(err))
	}
	return outcome
}

func (p *ArrivalPoller) destination(key, prefix string) string {
	return prefix + strings.TrimPrefix(key, p.cfg.IncomingPrefix)
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
