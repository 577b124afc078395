package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"hivecoordinator/internal/dispatch"
)

// isoWeek formats t as the ISO year-week period string used throughout
// the settlement engine.
func isoWeek(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// periodicTasks builds the small pool of cooperative background jobs
// that `hived serve` drives off one shared
// ticker, plus an intent-lock GC riding the same pool. Each task is a
// thin wrapper around logic the RPC surface already exercises; none
// block longer than a single map/slice pass.
func periodicTasks() []dispatch.Task {
	return []dispatch.Task{
		{Name: "liveness-sweep", Run: func(ctx context.Context) {
			if err := node.Members.SweepLiveness(time.Now()); err != nil {
				logrus.WithError(err).Warn("liveness sweep failed")
			}
		}},
		{Name: "aggregation-refresh", Run: func(ctx context.Context) {
			if err := node.Reputation.Sweep(time.Now()); err != nil {
				logrus.WithError(err).Warn("aggregation sweep failed")
			}
		}},
		{Name: "relay-gc", Run: func(ctx context.Context) {
			node.Relay.GC()
		}},
		{Name: "intent-gc", Run: func(ctx context.Context) {
			node.Intents.GC(time.Now())
		}},
		{Name: "credential-expiry", Run: func(ctx context.Context) {
			if _, err := node.MgmtStore.PruneExpired(time.Now()); err != nil {
				logrus.WithError(err).Warn("credential expiry sweep failed")
			}
		}},
		{Name: "settlement-tick", Run: func(ctx context.Context) {
			now := time.Now()
			period := isoWeek(now.AddDate(0, 0, -7))
			settled, err := node.Settlement.PeriodSettled(period)
			if err != nil {
				logrus.WithError(err).Warn("settlement tick: period status check failed")
				return
			}
			if !settled {
				logrus.WithField("period", period).Info("settlement tick: prior period has no completed proposal")
			}
		}},
	}
}
