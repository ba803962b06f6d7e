package tui

import (
	"context"

	"github.com/theirongolddev/stockcast/internal/dashboard"
	"github.com/theirongolddev/stockcast/internal/forecast"

	tea "github.com/charmbracelet/bubbletea"
)

// eventMsg carries one controller event into the update loop.
type eventMsg struct {
	ev     dashboard.Event
	closed bool
}

// reconciledMsg is sent when a status poll started by the view returns.
type reconciledMsg struct {
	phase dashboard.Phase
}

const (
	opTrain = "train"
	opChat  = "chat"
	opReset = "reset"
)

// opDoneMsg reports the end of a blocking controller operation. Failures
// already reached the user as notices; err is only logged.
type opDoneMsg struct {
	op  string
	err error
}

// waitForEvent blocks until the controller publishes the next event.
func waitForEvent(events <-chan dashboard.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventMsg{closed: true}
		}
		return eventMsg{ev: ev}
	}
}

func reconcileCmd(ctx context.Context, ctrl *dashboard.Controller) tea.Cmd {
	return func() tea.Msg {
		return reconciledMsg{phase: ctrl.Reconcile(ctx)}
	}
}

func trainCmd(ctx context.Context, ctrl *dashboard.Controller, path string, model forecast.ModelType) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opTrain, err: ctrl.StartTraining(ctx, path, model)}
	}
}

func chatCmd(ctx context.Context, ctrl *dashboard.Controller) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opChat, err: ctrl.SendMessage(ctx)}
	}
}

func resetCmd(ctx context.Context, ctrl *dashboard.Controller) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: opReset, err: ctrl.ConfirmReset(ctx)}
	}
}
