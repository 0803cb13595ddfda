package commands

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// progressReporter renders a run's progress as a terminal bar.
type progressReporter struct {
	pw      progress.Writer
	tracker *progress.Tracker
}

const progressScale = 1000

func newProgressReporter(title string) *progressReporter {
	pw := progress.NewWriter()
	pw.SetOutputWriter(os.Stderr)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(200 * time.Millisecond)
	pw.SetStyle(progress.StyleBlocks)
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.Value = false

	tracker := &progress.Tracker{Message: title, Total: progressScale}
	pw.AppendTracker(tracker)
	go pw.Render()

	return &progressReporter{pw: pw, tracker: tracker}
}

func (r *progressReporter) Progress(fraction float64) {
	r.tracker.SetValue(int64(fraction * progressScale))
}

func (r *progressReporter) Status(msg string) {
	r.tracker.UpdateMessage(msg)
}

// Stop finishes the bar and waits for the final render.
func (r *progressReporter) Stop() {
	r.tracker.MarkAsDone()
	r.pw.Stop()
	for r.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}
