package main

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"tephra/internal/driver"
	"tephra/internal/ui"
)

type runOutcome struct {
	result *driver.Result
	err    error
}

// runWithUI runs the session in the background while the progress UI reads
// its events. The UI quits when the run closes the channel.
func runWithUI(ctx context.Context, out io.Writer, title string, files []string, opts driver.Options) (*driver.Result, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan runOutcome, 1)
	opts.Sink = driver.ChannelSink{Ch: events}

	go func() {
		res, err := driver.NewSession(opts).Run(ctx, files)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, files, events)
	program := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// the run goroutine may still be sending
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil && ctx.Err() == nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
