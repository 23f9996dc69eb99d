package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/casafind/casafind-chat-api/chat"
)

// rebuildSpec is how often the thread index is reconciled against the
// message log. The index is updated inline on every send; the job only
// repairs drift left behind by in-flight failures or a cold start.
const rebuildSpec = "@every 10m"

// Scheduler handles periodic background jobs for the chat subsystem
type Scheduler struct {
	cron *cron.Cron
	Chat *chat.Service
}

// New creates a new scheduler instance
func New(chatService *chat.Service) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		Chat: chatService,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(rebuildSpec, s.rebuildThreadIndex); err != nil {
		zap.S().Errorw("failed to register thread index rebuild job", "error", err)
		return
	}
	s.cron.Start()
	zap.S().Infow("thread index reconciliation scheduled", "spec", rebuildSpec)
}

// Stop halts the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) rebuildThreadIndex() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.Chat.RebuildIndex(ctx); err != nil {
		if errors.Is(err, chat.ErrAdminNotConfigured) {
			zap.S().Debug("skipping thread index rebuild, no support admin configured")
			return
		}
		zap.S().Errorw("thread index rebuild failed", "error", err)
		return
	}
	zap.S().Debug("thread index rebuilt from message log")
}
