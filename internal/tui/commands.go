package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// loadBatch runs the loader off the update loop.
func (m Model) loadBatch() tea.Cmd {
	loader := m.config.Loader
	ctx := m.ctx
	return func() tea.Msg {
		if loader == nil {
			return batchLoadedMsg{err: fmt.Errorf("no receipt source configured")}
		}
		results, err := loader(ctx)
		return batchLoadedMsg{results: results, err: err}
	}
}

// saveBatch hands the session to the saver. The saver reports outcomes back
// into the session while the view polls it through the spinner.
func (m Model) saveBatch() tea.Cmd {
	saver := m.config.Saver
	session := m.session
	ctx := m.ctx
	return func() tea.Msg {
		if saver == nil {
			return saveFinishedMsg{err: fmt.Errorf("no storage configured")}
		}
		summary, err := saver.SaveBatch(ctx, session)
		return saveFinishedMsg{summary: summary, err: err}
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
