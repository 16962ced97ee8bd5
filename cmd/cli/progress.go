package main

import (
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"

	"peakmotif/domain/core"
	"peakmotif/ports"
)

// barObserver draws one progress bar per motif stage and forwards every
// event to next
type barObserver struct {
	next    ports.ProgressObserver
	enabled bool

	mu   sync.Mutex
	bars map[ports.Stage]*pb.ProgressBar
}

func newBarObserver(next ports.ProgressObserver, enabled bool) *barObserver {
	return &barObserver{next: next, enabled: enabled, bars: make(map[ports.Stage]*pb.ProgressBar)}
}

func (o *barObserver) StageStarted(runID core.RunID, stage ports.Stage) {
	o.next.StageStarted(runID, stage)
}

func (o *barObserver) StageFinished(runID core.RunID, stage ports.Stage, elapsed time.Duration, fields map[string]interface{}) {
	o.finish(stage)
	o.next.StageFinished(runID, stage, elapsed, fields)
}

func (o *barObserver) MotifProgress(runID core.RunID, stage ports.Stage, done, total int) {
	if o.enabled {
		o.mu.Lock()
		bar, ok := o.bars[stage]
		if !ok {
			bar = pb.Full.Start(total)
			bar.Set("prefix", string(stage)+" ")
			o.bars[stage] = bar
		}
		// workers report out of order; never move the bar backwards
		if int64(done) > bar.Current() {
			bar.SetCurrent(int64(done))
		}
		o.mu.Unlock()
	}
	o.next.MotifProgress(runID, stage, done, total)
}

func (o *barObserver) finish(stage ports.Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if bar, ok := o.bars[stage]; ok {
		bar.Finish()
		delete(o.bars, stage)
	}
}

// Close finishes any bar still drawing
func (o *barObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for stage, bar := range o.bars {
		bar.Finish()
		delete(o.bars, stage)
	}
}
