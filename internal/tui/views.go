package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/receipt-review/internal/batch"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) render(st batch.State) string {
	var body string
	switch st.Phase {
	case batch.PhaseIdle:
		body = m.renderIdle()
	case batch.PhaseLoading:
		body = m.spinner.View() + " Extracting receipts..."
	case batch.PhaseReviewing:
		if m.saving {
			body = m.renderSaving(st)
		} else {
			body = m.renderReview(st)
		}
	case batch.PhaseEditing:
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderList(st), "", m.renderForm())
	case batch.PhaseSaving:
		body = m.renderSaving(st)
	case batch.PhaseComplete, batch.PhaseError:
		body = m.renderSummary(st)
	}

	if m.showHelp {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", m.renderHelp(st.Phase))
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(st),
		body,
		"",
		m.renderStatusBar(st.Phase),
	)
}

func (m Model) renderHeader(st batch.State) string {
	title := m.theme.Title.Render("Receipt Review")
	phase := lipgloss.NewStyle().Foreground(m.theme.Muted).Render(" [" + st.Phase.String() + "]")
	return title + phase
}

func (m Model) renderIdle() string {
	if m.config.Loader == nil {
		return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("No batch loaded.")
	}
	return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("No batch loaded. Press l to load receipts.")
}

func (m Model) renderReview(st batch.State) string {
	if len(st.Items) == 0 {
		return lipgloss.NewStyle().Foreground(m.theme.Muted).Render("Every receipt was discarded. Press r to start over.")
	}
	sections := []string{m.renderList(st)}
	if item, ok := st.CurrentItem(); ok {
		sections = append(sections, "", m.renderDetail(item))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderList(st batch.State) string {
	lines := make([]string, 0, len(st.Items)+1)
	lines = append(lines, m.theme.Subtitle.Render(fmt.Sprintf("%d receipts", len(st.Items))))

	for i, item := range st.Items {
		merchant := "(unreadable)"
		date := "----------"
		total := ""
		if item.Receipt != nil {
			if item.Receipt.HasMerchant() {
				merchant = item.Receipt.Merchant
			}
			if !item.Receipt.Date.IsZero() {
				date = item.Receipt.Date.Format(dateLayout)
			}
			total = fmt.Sprintf("%.2f", item.Receipt.Total)
		}

		badge := m.theme.ItemStatus(item.Status).Render(fmt.Sprintf("%-7s", item.Status))
		line := fmt.Sprintf("%3d  %s  %-28s %s %10s  %3.0f%%",
			item.Index+1, badge, truncate(merchant, 28), date, total, item.Confidence*100)

		if i == st.CurrentIndex {
			line = m.theme.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail(item model.BatchItem) string {
	if item.Receipt == nil {
		reason := item.FailureReason
		if reason == "" {
			reason = "extraction failed"
		}
		return m.theme.BorderedBox.Render(
			m.theme.StatusError.Render("Extraction failed: ") + reason + "\nPress e to enter it by hand or d to discard.")
	}

	r := item.Receipt
	lines := []string{m.theme.Bold.Render(r.Merchant)}
	if r.Category != "" {
		lines = append(lines, "Category: "+r.Category)
	}
	for _, li := range r.LineItems {
		lines = append(lines, fmt.Sprintf("  %-30s x%-4g %8.2f", truncate(li.Description, 30), li.Quantity, li.Amount))
	}
	lines = append(lines, fmt.Sprintf("  %-36s %8.2f", "Total", r.Total))
	if len(r.LineItems) > 0 {
		if diff := r.LineItemTotal() - r.Total; diff > 0.005 || diff < -0.005 {
			lines = append(lines, m.theme.StatusWarning.Render(
				fmt.Sprintf("Line items add up to %.2f", r.LineItemTotal())))
		}
	}
	return m.theme.BorderedBox.Render(strings.Join(lines, "\n"))
}

func (m Model) renderForm() string {
	lines := []string{m.theme.Subtitle.Render("Editing " + m.form.itemID)}
	for i, in := range m.form.inputs {
		label := m.theme.Label.Render(fieldLabels[i])
		if i == m.form.focus {
			label = m.theme.FocusedLabel.Render(fieldLabels[i])
		}
		lines = append(lines, label+" "+in.View())
	}
	if m.form.err != nil {
		lines = append(lines, "", m.theme.StatusError.Render(m.form.err.Error()))
	}
	return m.theme.RoundedBox.Render(strings.Join(lines, "\n"))
}

func (m Model) renderSaving(st batch.State) string {
	done := st.SavedCount + st.FailedCount
	return fmt.Sprintf("%s Saving receipts... %d/%d (%d saved, %d failed)",
		m.spinner.View(), done, len(st.Items), st.SavedCount, st.FailedCount)
}

func (m Model) renderSummary(st batch.State) string {
	var lines []string
	if st.Phase == batch.PhaseError {
		msg := st.Error
		if msg == "" {
			msg = "Batch failed"
		}
		lines = append(lines, m.theme.StatusError.Render(msg))
	} else {
		lines = append(lines, m.theme.StatusSuccess.Render(
			fmt.Sprintf("Saved %d of %d receipts", st.SavedCount, len(st.Items))))
	}

	failed := make([]string, 0, len(st.Outcomes))
	for id, o := range st.Outcomes {
		if !o.Saved {
			failed = append(failed, fmt.Sprintf("  %s: %s", id, o.Reason))
		}
	}
	sort.Strings(failed)
	if len(failed) > 0 {
		lines = append(lines, "", m.theme.Subtitle.Render("Failed:"))
		lines = append(lines, failed...)
	}
	if m.summary != nil {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(m.theme.Muted).Render(
			fmt.Sprintf("Finished in %s", m.summary.Duration.Round(time.Millisecond))))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp(phase batch.Phase) string {
	var lines []string
	for _, b := range m.bindingsFor(phase) {
		h := b.Help()
		lines = append(lines, fmt.Sprintf("  %-10s %s",
			lipgloss.NewStyle().Foreground(m.theme.Primary).Render(h.Key), h.Desc))
	}
	return m.theme.BorderedBox.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar(phase batch.Phase) string {
	if m.status != "" {
		return m.theme.StatusError.Render(m.status)
	}
	hints := make([]string, 0, 8)
	for _, b := range m.bindingsFor(phase) {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	return lipgloss.NewStyle().Foreground(m.theme.Muted).Render(strings.Join(hints, " • "))
}

func (m Model) bindingsFor(phase batch.Phase) []key.Binding {
	switch phase {
	case batch.PhaseIdle:
		return m.keymap.IdleHelp()
	case batch.PhaseReviewing:
		return m.keymap.ReviewHelp()
	case batch.PhaseEditing:
		return m.keymap.EditHelp()
	case batch.PhaseComplete, batch.PhaseError:
		return m.keymap.DoneHelp()
	default:
		return []key.Binding{m.keymap.ForceQuit}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
