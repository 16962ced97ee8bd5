package app

import (
	"sync"
	"time"

	"peakmotif/domain/core"
	"peakmotif/internal"
	"peakmotif/ports"
)

// NopObserver discards pipeline events
type NopObserver struct{}

func (NopObserver) StageStarted(core.RunID, ports.Stage)                                         {}
func (NopObserver) StageFinished(core.RunID, ports.Stage, time.Duration, map[string]interface{}) {}
func (NopObserver) MotifProgress(core.RunID, ports.Stage, int, int)                              {}

// LogObserver writes pipeline events as structured log lines
type LogObserver struct {
	logger *internal.Logger

	mu       sync.Mutex
	lastTick map[ports.Stage]int
	// every motif-progress event whose done count is a multiple of step is logged
	step int
}

// NewLogObserver creates an observer that logs to logger. Motif progress is
// logged every step motifs and at completion.
func NewLogObserver(logger *internal.Logger, step int) *LogObserver {
	if step < 1 {
		step = 1
	}
	return &LogObserver{logger: logger, lastTick: make(map[ports.Stage]int), step: step}
}

func (o *LogObserver) StageStarted(runID core.RunID, stage ports.Stage) {
	o.logger.WithFields(internal.Fields{"run_id": runID.String(), "stage": string(stage)}).Debug("stage started")
}

func (o *LogObserver) StageFinished(runID core.RunID, stage ports.Stage, elapsed time.Duration, fields map[string]interface{}) {
	l := o.logger.WithFields(internal.Fields(fields)).WithFields(internal.Fields{
		"run_id":  runID.String(),
		"stage":   string(stage),
		"elapsed": elapsed.String(),
	})
	if _, failed := fields["error"]; failed {
		l.Error("stage failed")
		return
	}
	l.Info("stage finished")
}

func (o *LogObserver) MotifProgress(runID core.RunID, stage ports.Stage, done, total int) {
	o.mu.Lock()
	if done != total && done/o.step == o.lastTick[stage]/o.step {
		o.mu.Unlock()
		return
	}
	o.lastTick[stage] = done
	o.mu.Unlock()

	o.logger.WithFields(internal.Fields{
		"run_id": runID.String(),
		"stage":  string(stage),
		"done":   done,
		"total":  total,
	}).Debug("motif progress")
}
