// Package tui provides the interactive Bubble Tea dashboard for stockcast.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/theirongolddev/stockcast/internal/dashboard"
	"github.com/theirongolddev/stockcast/internal/forecast"
	"github.com/theirongolddev/stockcast/internal/tui/components"
	"github.com/theirongolddev/stockcast/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

// Options configures NewApp.
type Options struct {
	Controller   *dashboard.Controller
	APIBase      string
	DefaultModel forecast.ModelType
	Logger       *zap.Logger
}

// App is the root Bubble Tea model. All dashboard state lives in the
// controller; App keeps a Snapshot of it plus purely visual state.
type App struct {
	ctrl    *dashboard.Controller
	events  <-chan dashboard.Event
	ctx     context.Context
	cancel  context.CancelFunc
	log     *zap.Logger
	apiBase string

	snap       dashboard.Snapshot
	reconciled bool

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool

	toasts      []toast
	nextToastID int

	// Upload dialog (huh form). hidden lets the user look at other views
	// while training runs; it resets once the controller closes the dialog.
	uploadForm   *huh.Form
	uploadVals   uploadValues
	uploadHidden bool
	starting     bool
	defaultModel forecast.ModelType

	chat chatState

	spinner spinner.Model
}

const (
	tabHome = iota
	tabChat
	tabModel
)

const (
	minTerminalWidth = 60
	maxContentWidth  = 140
	minContentHeight = 5
)

// NewApp creates a new TUI app model bound to ctrl.
func NewApp(opts Options) App {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = forecast.ModelSARIMA
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	ctx, cancel := context.WithCancel(context.Background())
	events, _ := opts.Controller.Subscribe()

	return App{
		ctrl:         opts.Controller,
		events:       events,
		ctx:          ctx,
		cancel:       cancel,
		log:          opts.Logger,
		apiBase:      opts.APIBase,
		snap:         opts.Controller.Snapshot(),
		defaultModel: opts.DefaultModel,
		chat:         newChatState(),
		spinner:      sp,
	}
}

// Init implements tea.Model. Mounting the view reconciles with the backend.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		tea.EnableMouseCellMotion,
		waitForEvent(a.events),
		reconcileCmd(a.ctx, a.ctrl),
		a.spinner.Tick,
	)
}

// quit tears the controller down before leaving the program.
func (a App) quit() (tea.Model, tea.Cmd) {
	a.cancel()
	a.ctrl.Close()
	return a, tea.Quit
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.chat.resize(a.contentWidth(), a.chatHeight())
		a.chat.render(a.snap.Turns, a.contentWidth())
		if a.uploadForm != nil {
			a.uploadForm = a.uploadForm.WithWidth(dialogWidth(a.contentWidth()) - 4)
		}
		return a, nil

	case eventMsg:
		if msg.closed {
			return a, nil
		}
		return a.applyEvent(msg.ev)

	case reconciledMsg:
		a.reconciled = true
		a.log.Debug("view reconciled", zap.Stringer("phase", msg.phase))
		return a, nil

	case opDoneMsg:
		if msg.err != nil {
			a.log.Debug("operation finished with error", zap.String("op", msg.op), zap.Error(msg.err))
		}
		if msg.op == opTrain {
			a.starting = false
			a.snap = a.ctrl.Snapshot()
			// A failed start leaves the dialog open; offer the form again.
			if a.snap.UploadOpen && a.wantsUploadForm() {
				cmd := a.openUploadForm()
				return a, cmd
			}
		}
		return a, nil

	case toastExpiredMsg:
		a.toasts = dropToast(a.toasts, msg.id)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.MouseMsg:
		return a.updateMouse(msg)

	case tea.KeyMsg:
		return a.updateKey(msg)
	}

	if a.uploadForm != nil {
		return a.updateUploadForm(msg)
	}
	if a.activeTab == tabChat {
		return a.updateChatInput(msg)
	}
	return a, nil
}

// applyEvent refreshes the snapshot after a controller change.
func (a App) applyEvent(ev dashboard.Event) (tea.Model, tea.Cmd) {
	prevTurns := len(a.snap.Turns)
	a.snap = a.ctrl.Snapshot()

	cmds := []tea.Cmd{waitForEvent(a.events)}

	if ev.Notice != nil {
		var cmd tea.Cmd
		a, cmd = a.pushToast(*ev.Notice)
		cmds = append(cmds, cmd)
	}

	if !a.snap.UploadOpen {
		a.uploadHidden = false
		a.uploadForm = nil
	} else if a.wantsUploadForm() {
		cmds = append(cmds, a.openUploadForm())
	}

	if !a.snap.Sending && a.chat.input.Value() != a.snap.Input {
		a.chat.input.SetValue(a.snap.Input)
		a.chat.input.CursorEnd()
	}
	if len(a.snap.Turns) != prevTurns {
		a.chat.render(a.snap.Turns, a.contentWidth())
	}
	a.syncChatFocus()

	return a, tea.Batch(cmds...)
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a.quit()
	}

	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	// Overlays take all keys while visible.
	if a.snap.ResetOpen {
		return a.updateResetConfirm(key)
	}
	if a.uploadVisible() {
		return a.updateUploadKey(msg)
	}

	if a.activeTab == tabChat && a.chat.input.Focused() {
		switch key {
		case "esc":
			a.chat.input.Blur()
			return a, nil
		case "enter":
			return a.sendChat()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			a.chat.viewport, cmd = a.chat.viewport.Update(msg)
			return a, cmd
		}
		return a.updateChatInput(msg)
	}

	switch key {
	case "?":
		a.showHelp = true
		return a, nil
	case "q":
		return a.quit()
	case "r":
		return a, reconcileCmd(a.ctx, a.ctrl)
	case "u":
		if a.snap.Uploading {
			a.uploadHidden = false
			return a, nil
		}
		a.ctrl.OpenUploadDialog()
		return a, nil
	case "D":
		if a.snap.Status != nil || a.snap.Trained {
			a.ctrl.RequestReset()
		}
		return a, nil
	case "i", "enter":
		if a.activeTab == tabChat {
			cmd := a.focusChat()
			return a, cmd
		}
		return a, nil
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
	case "right", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
	case "j", "down", "k", "up", "pgup", "pgdown":
		if a.activeTab == tabChat {
			var cmd tea.Cmd
			a.chat.viewport, cmd = a.chat.viewport.Update(msg)
			return a, cmd
		}
		return a, nil
	default:
		if len(msg.Runes) == 1 {
			if idx := components.TabIdxByKey(msg.Runes[0]); idx >= 0 {
				a.activeTab = idx
			}
		}
	}

	if a.activeTab == tabChat {
		cmd := a.focusChat()
		return a, cmd
	}
	a.chat.input.Blur()
	return a, nil
}

func (a App) updateResetConfirm(key string) (tea.Model, tea.Cmd) {
	if a.snap.Resetting {
		return a, nil
	}
	switch key {
	case "y", "Y":
		return a, resetCmd(a.ctx, a.ctrl)
	case "n", "N", "esc", "q":
		a.ctrl.CancelReset()
	}
	return a, nil
}

func (a App) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if a.showHelp || a.snap.ResetOpen || a.uploadVisible() {
		return a, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		if a.activeTab == tabChat {
			var cmd tea.Cmd
			a.chat.viewport, cmd = a.chat.viewport.Update(msg)
			return a, cmd
		}
	case tea.MouseButtonLeft:
		if msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
				if tab == tabChat {
					cmd := a.focusChat()
					return a, cmd
				}
				a.chat.input.Blur()
			}
		}
	}
	return a, nil
}

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1 // separator
	}
	return -1
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  stockcast needs at least %d columns.\n",
		a.width, minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) statusInfo() components.StatusInfo {
	info := components.StatusInfo{
		Phase:    a.snap.Phase.String(),
		Backend:  a.apiBase,
		Progress: a.snap.Progress,
		Training: a.snap.Uploading,
	}
	switch {
	case !a.reconciled:
		info.Busy = "connecting"
	case a.snap.Sending:
		info.Busy = "thinking"
	case a.snap.Resetting:
		info.Busy = "deleting"
	}
	return info
}

func (a App) headerHeight() int { return 1 }

func (a App) statusHeight() int { return 1 }

func (a App) contentHeight() int {
	return max(a.height-a.headerHeight()-a.statusHeight(), minContentHeight)
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	header := components.RenderTabBar(a.activeTab, w)
	statusBar := components.RenderStatusBar(w, a.statusInfo())
	contentH := a.contentHeight()

	var content string
	switch {
	case a.snap.ResetOpen:
		content = a.renderResetConfirm(cw, contentH)
	case a.uploadVisible():
		content = a.renderUploadDialog(cw, contentH)
	default:
		switch a.activeTab {
		case tabHome:
			content = a.renderHome(cw)
		case tabChat:
			content = a.renderChat(cw)
		case tabModel:
			content = a.renderModel(cw)
		}
	}

	content = overlayToasts(content, a.toasts, cw, contentH)
	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	sections := []struct {
		title    string
		bindings []struct{ key, desc string }
	}{
		{"Navigation", []struct{ key, desc string }{
			{"h c m", "Home / Chat / Model"},
			{"← → tab", "Previous / Next view"},
			{"j k pgup pgdn", "Scroll chat"},
		}},
		{"Actions", []struct{ key, desc string }{
			{"u", "Upload dataset and train"},
			{"r", "Refresh backend status"},
			{"D", "Delete all data"},
			{"i enter", "Focus chat input"},
			{"esc", "Leave input / close dialog"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, s := range sections {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(s.title))
		b.WriteString("\n")
		for _, bind := range s.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-14s", bind.key)),
				descStyle.Render(bind.desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Helpers ────────────────────────────────────────────────────

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}
