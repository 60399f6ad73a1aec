// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commitstore

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultTTL is the §4.8 default maxAge for PurgeStale.
const DefaultTTL = 3 * 24 * time.Hour

// PurgeScheduler runs PurgeStale on a cron schedule, owned by the
// orchestrator per §4.8's "on a schedule owned by the orchestrator".
type PurgeScheduler struct {
	store  *Store
	ttl    time.Duration
	cron   *cron.Cron
	logger *zap.Logger
}

// NewPurgeScheduler builds a scheduler that purges entries older than ttl
// according to spec (a standard 5-field cron expression, e.g. "0 * * * *"
// for hourly).
func NewPurgeScheduler(store *Store, ttl time.Duration, spec string, logger *zap.Logger) (*PurgeScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New()
	ps := &PurgeScheduler{store: store, ttl: ttl, cron: c, logger: logger}

	_, err := c.AddFunc(spec, ps.runOnce)
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// Start begins the schedule in the background.
func (ps *PurgeScheduler) Start() {
	ps.cron.Start()
}

// Stop halts the schedule, waiting for any in-flight purge to finish.
func (ps *PurgeScheduler) Stop() {
	<-ps.cron.Stop().Done()
}

func (ps *PurgeScheduler) runOnce() {
	removed, err := ps.store.PurgeStale(ps.ttl)
	if err != nil {
		ps.logger.Warn("commit store purge failed", zap.Error(err))
		return
	}
	if removed > 0 {
		ps.logger.Info("purged stale commits", zap.Int("removed", removed))
	}
}
