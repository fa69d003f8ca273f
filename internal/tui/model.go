// Package tui is the terminal front end for reviewing a batch of receipts.
package tui

import (
	"context"

	"github.com/Veraticus/receipt-review/internal/batch"
	"github.com/Veraticus/receipt-review/internal/common"
	"github.com/Veraticus/receipt-review/internal/engine"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/Veraticus/receipt-review/internal/tui/themes"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the TUI state. Batch state lives in the session; the model
// only keeps presentation state.
type Model struct {
	ctx      context.Context
	session  *batch.Session
	summary  *engine.SaveSummary
	theme    themes.Theme
	status   string
	config   Config
	keymap   KeyMap
	spinner  spinner.Model
	form     editForm
	width    int
	height   int
	saving   bool
	showHelp bool
	quitting bool
}

// NewModel creates a model driving session.
func NewModel(ctx context.Context, session *batch.Session, opts ...Option) Model {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(cfg.Theme.Primary)

	return Model{
		ctx:     contextOrBackground(ctx),
		session: session,
		config:  cfg,
		theme:   cfg.Theme,
		keymap:  DefaultKeyMap(),
		spinner: s,
		width:   cfg.Width,
		height:  cfg.Height,
	}
}

// Init starts loading when a loader is configured and nothing is loaded yet.
func (m Model) Init() tea.Cmd {
	if m.config.Loader == nil || m.session.Phase() != batch.PhaseIdle {
		return nil
	}
	if res := m.session.StartLoading(); !res.OK() {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.loadBatch())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case batchLoadedMsg:
		m.handleLoaded(msg)
		return m, nil

	case saveFinishedMsg:
		m.saving = false
		m.summary = msg.summary
		if msg.err != nil {
			m.status = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.session.Phase() == batch.PhaseEditing {
		cmd := m.form.update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.render(m.session.State())
}

// Session returns the session the model drives.
func (m Model) Session() *batch.Session {
	return m.session
}

func (m Model) busy() bool {
	if m.saving {
		return true
	}
	switch m.session.Phase() {
	case batch.PhaseLoading, batch.PhaseSaving:
		return true
	default:
		return false
	}
}

func (m *Model) handleLoaded(msg batchLoadedMsg) {
	// A reset while the loader ran leaves nothing waiting for the results.
	if m.session.Phase() != batch.PhaseLoading {
		return
	}

	switch {
	case msg.err != nil:
		m.report(m.session.LoadFailed(msg.err.Error()))
	case len(msg.results) == 0:
		m.report(m.session.LoadFailed(common.ErrNoReceipts.Error()))
	default:
		if res := m.session.LoadBatch(msg.results); !res.OK() {
			m.report(m.session.LoadFailed(res.Err.Error()))
		}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}

	phase := m.session.Phase()
	if phase == batch.PhaseEditing {
		return m.handleEditKey(msg)
	}

	m.status = ""
	switch {
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keymap.Quit):
		if m.saving {
			m.status = "save in progress, press Ctrl+C to abandon it"
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Reset):
		m.summary = nil
		m.report(m.session.Reset())
		return m, nil
	}

	switch phase {
	case batch.PhaseIdle:
		if key.Matches(msg, m.keymap.Load) && m.config.Loader != nil {
			if m.report(m.session.StartLoading()) {
				return m, tea.Batch(m.spinner.Tick, m.loadBatch())
			}
		}
	case batch.PhaseReviewing:
		return m.handleReviewKey(msg)
	}
	return m, nil
}

func (m Model) handleReviewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.saving {
		return m, nil
	}

	st := m.session.State()
	item, hasItem := st.CurrentItem()

	switch {
	case key.Matches(msg, m.keymap.Up):
		if st.CurrentIndex > 0 {
			m.report(m.session.SelectItem(st.CurrentIndex - 1))
		}

	case key.Matches(msg, m.keymap.Down):
		if st.CurrentIndex < len(st.Items)-1 {
			m.report(m.session.SelectItem(st.CurrentIndex + 1))
		}

	case key.Matches(msg, m.keymap.Edit):
		if hasItem && m.report(m.session.StartEditing(item.ID)) {
			m.form = newEditForm(item)
			return m, textinput.Blink
		}

	case key.Matches(msg, m.keymap.Accept):
		if !hasItem {
			return m, nil
		}
		if !item.HasCandidate() {
			m.status = "nothing to accept, edit the receipt first"
			return m, nil
		}
		ready := model.StatusReady
		m.report(m.session.UpdateItem(item.ID, batch.ItemPatch{Status: &ready}))

	case key.Matches(msg, m.keymap.Discard):
		if hasItem {
			m.report(m.session.DiscardItem(item.ID))
		}

	case key.Matches(msg, m.keymap.Save):
		if len(st.Items) == 0 {
			m.status = common.ErrNoReceipts.Error()
			return m, nil
		}
		m.saving = true
		m.summary = nil
		return m, tea.Batch(m.spinner.Tick, m.saveBatch())
	}
	return m, nil
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Cancel):
		m.report(m.session.FinishEditing())
		return m, nil

	case key.Matches(msg, m.keymap.Apply):
		receipt, err := m.form.receipt()
		if err != nil {
			m.form.err = err
			return m, nil
		}
		if !m.report(m.session.UpdateItem(m.form.itemID, batch.ItemPatch{Receipt: &receipt})) {
			return m, nil
		}
		m.report(m.session.FinishEditing())
		return m, nil

	case key.Matches(msg, m.keymap.NextField):
		m.form.next()
		return m, nil

	case key.Matches(msg, m.keymap.PrevField):
		m.form.prev()
		return m, nil
	}

	m.form.err = nil
	cmd := m.form.update(msg)
	return m, cmd
}

// report surfaces a rejected operation in the status bar.
func (m *Model) report(res batch.Result) bool {
	if res.OK() {
		return true
	}
	m.status = res.Err.Error()
	return false
}
