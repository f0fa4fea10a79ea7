package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// SpinnerSink shows a spinner while transactions are pending and a
// one-line summary for each finished stage
type SpinnerSink struct {
	out            io.Writer
	spinner        *spinner.Spinner
	currentStage   string
	currentMessage string
	stageStartTime time.Time
}

// NewSpinnerSink creates a new spinner-based progress sink writing to stderr
func NewSpinnerSink() *SpinnerSink {
	return NewSpinnerSinkWithWriter(os.Stderr)
}

// NewSpinnerSinkWithWriter creates a spinner sink writing to out
func NewSpinnerSinkWithWriter(out io.Writer) *SpinnerSink {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false

	return &SpinnerSink{out: out, spinner: s}
}

// OnProgress handles progress events
func (r *SpinnerSink) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	if event.Stage != r.currentStage {
		r.completeCurrentStage()
		r.currentStage = event.Stage
		r.stageStartTime = time.Now()
	}
	r.currentMessage = event.Message

	if event.Spinner {
		r.spinner.Suffix = " " + event.Message
		if !r.spinner.Active() {
			r.spinner.Start()
		}
	} else if r.spinner.Active() {
		r.spinner.Stop()
	}
}

// Info prints an info message
func (r *SpinnerSink) Info(message string) {
	r.pause(func() {
		color.New(color.FgCyan).Fprintln(r.out, message)
	})
}

// Error prints an error message
func (r *SpinnerSink) Error(message string) {
	r.currentStage = ""
	if r.spinner.Active() {
		r.spinner.Stop()
	}
	color.New(color.FgRed).Fprintln(r.out, message)
}

// Stop ends the spinner and closes the last stage
func (r *SpinnerSink) Stop() {
	r.completeCurrentStage()
	r.currentStage = ""
	if r.spinner.Active() {
		r.spinner.Stop()
	}
}

func (r *SpinnerSink) pause(fn func()) {
	wasActive := r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}
	fn()
	if wasActive {
		r.spinner.Start()
	}
}

// completeCurrentStage prints a summary for stages that showed a spinner
func (r *SpinnerSink) completeCurrentStage() {
	if r.currentStage == "" || !r.spinner.Active() {
		return
	}
	r.spinner.Stop()
	duration := time.Since(r.stageStartTime).Round(time.Millisecond)
	fmt.Fprintf(r.out, "%s %s (%s)\n", color.GreenString("✓"), r.currentMessage, duration)
}

var _ usecase.ProgressSink = (*SpinnerSink)(nil)
