// Copyright 2026 The IoT Project Authors
// SPDX-License-Identifier: Apache-2.0

// Package classify decides whether a validated reading is anomalous.
//
// The production rule is a single threshold on ACHP, but the
// [Classifier] interface keeps the decision swappable: a multi-metric
// or rolling-statistics policy can replace [Threshold] without any
// change to the validator, the store, or the ingestion controller.
package classify

import "github.com/YusufAkyuz/IoT-Project/lib/telemetry"

// DefaultACHPThreshold is the threshold applied when no configuration
// overrides it.
const DefaultACHPThreshold = 50.0

// Classifier maps a reading's metrics to an anomaly verdict. Classify
// must be a pure function: no side effects, no blocking, no state
// mutation. The pipeline calls it exactly once per reading at
// ingestion time and never revisits the verdict.
type Classifier interface {
	Classify(metrics telemetry.MetricSet) bool
}

// Threshold flags readings whose ACHP value strictly exceeds ACHP.
// A reading exactly at the threshold is normal.
type Threshold struct {
	ACHP float64
}

// Classify reports whether the reading's ACHP metric exceeds the
// threshold. The other three metrics deliberately do not factor in.
func (t Threshold) Classify(metrics telemetry.MetricSet) bool {
	return metrics.ACHP > t.ACHP
}
