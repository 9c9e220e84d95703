// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chainsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type coordinatorMetrics struct {
	blocks          prometheus.Counter
	skippedBlocks   prometheus.Counter
	rollbacks       prometheus.Counter
	rolledBack      prometheus.Counter
	proposals       prometheus.Counter
	votes           *prometheus.CounterVec
	tipSlot         prometheus.Gauge
	tipHeight       prometheus.Gauge
	blockProcessing prometheus.Histogram
}

func (m *coordinatorMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.blocks = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "govaudit_chainsync_blocks_total",
		Help: "number of blocks projected",
	})
	m.skippedBlocks = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "govaudit_chainsync_skipped_blocks_total",
		Help: "number of blocks from unsupported eras",
	})
	m.rollbacks = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "govaudit_chainsync_rollbacks_total",
		Help: "number of rollbacks handled",
	})
	m.rolledBack = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "govaudit_chainsync_rolled_back_blocks_total",
		Help: "number of projected blocks removed by rollbacks",
	})
	m.proposals = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "govaudit_governance_proposals_total",
		Help: "number of proposals stored",
	})
	m.votes = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "govaudit_governance_votes_total",
			Help: "number of votes stored by verification state",
		},
		[]string{"verification_state"},
	)
	m.tipSlot = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "govaudit_chainsync_tip_slot",
		Help: "slot of the last projected block",
	})
	m.tipHeight = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "govaudit_chainsync_tip_height",
		Help: "height of the last projected block",
	})
	m.blockProcessing = promautoFactory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "govaudit_chainsync_block_processing_seconds",
			Help:    "time taken to project a block",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
	)
}
