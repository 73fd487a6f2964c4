// Package scheduler runs the periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"wayfarer/logger"
	"wayfarer/models"
)

const jobTimeout = 5 * time.Minute

type BanStore interface {
	FindBanExpired(ctx context.Context, now time.Time) ([]models.User, error)
	LiftBan(ctx context.Context, id primitive.ObjectID) error
}

// BanExpiryJob lifts bans whose end time has passed.
type BanExpiryJob struct {
	users BanStore
	now   func() time.Time
}

func NewBanExpiryJob(users BanStore) *BanExpiryJob {
	return &BanExpiryJob{users: users, now: time.Now}
}

// Run lifts every expired ban and returns how many were lifted. A failure on
// one user is logged and the sweep moves on.
func (j *BanExpiryJob) Run(ctx context.Context) (int, error) {
	now := j.now().UTC()
	users, err := j.users.FindBanExpired(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "find expired bans")
	}

	lifted := 0
	for i := range users {
		u := &users[i]
		if !u.BanExpired(now) {
			continue
		}
		if err := j.users.LiftBan(ctx, u.ID); err != nil {
			logger.Error("lift ban failed", zap.String("user", u.ID.Hex()), zap.Error(err))
			continue
		}
		lifted++
	}
	return lifted, nil
}

// Scheduler owns the cron runner. Schedules are evaluated in UTC.
type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	l := cronLogger{logger.Log.Sugar()}
	return &Scheduler{cron: cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)}
}

// AddBanSweep registers job on spec, a standard five-field cron expression.
func (s *Scheduler) AddBanSweep(spec string, job *BanExpiryJob) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		lifted, err := job.Run(ctx)
		if err != nil {
			logger.Error("ban sweep failed", zap.Error(err))
			return
		}
		logger.Info("ban sweep finished", zap.Int("lifted", lifted))
	})
	return errors.Wrapf(err, "schedule ban sweep %q", spec)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop prevents new runs and waits for a running job, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
