package tui

import (
	"context"
	"fmt"

	"github.com/Veraticus/receipt-review/internal/batch"
	tea "github.com/charmbracelet/bubbletea"
)

// Run drives session through the interactive review until the user quits and
// returns the final session state.
func Run(ctx context.Context, session *batch.Session, opts ...Option) (batch.State, error) {
	if session == nil {
		return batch.State{}, fmt.Errorf("session is required")
	}

	m := NewModel(ctx, session, opts...)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return session.State(), fmt.Errorf("TUI error: %w", err)
	}
	return session.State(), nil
}
