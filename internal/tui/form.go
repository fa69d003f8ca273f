package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const dateLayout = "2006-01-02"

var errInvalidField = errors.New("invalid field")

const (
	fieldMerchant = iota
	fieldDate
	fieldTotal
	fieldCategory
	fieldCount
)

var fieldLabels = [fieldCount]string{"Merchant", "Date", "Total", "Category"}

// editForm collects corrections for one receipt.
type editForm struct {
	base   model.Receipt
	err    error
	itemID string
	inputs [fieldCount]textinput.Model
	focus  int
}

func newEditForm(item model.BatchItem) editForm {
	var base model.Receipt
	if item.Receipt != nil {
		base = item.Receipt.Clone()
	}

	f := editForm{itemID: item.ID, base: base}
	for i := range f.inputs {
		in := textinput.New()
		in.CharLimit = 64
		in.Prompt = ""
		f.inputs[i] = in
	}

	f.inputs[fieldMerchant].Placeholder = "Merchant name"
	f.inputs[fieldMerchant].SetValue(base.Merchant)
	f.inputs[fieldDate].Placeholder = dateLayout
	if !base.Date.IsZero() {
		f.inputs[fieldDate].SetValue(base.Date.Format(dateLayout))
	}
	f.inputs[fieldTotal].Placeholder = "0.00"
	if base.Total != 0 {
		f.inputs[fieldTotal].SetValue(strconv.FormatFloat(base.Total, 'f', 2, 64))
	}
	f.inputs[fieldCategory].Placeholder = "Category (optional)"
	f.inputs[fieldCategory].SetValue(base.Category)

	f.inputs[fieldMerchant].Focus()
	return f
}

func (f *editForm) next() {
	f.setFocus((f.focus + 1) % fieldCount)
}

func (f *editForm) prev() {
	f.setFocus((f.focus + fieldCount - 1) % fieldCount)
}

func (f *editForm) setFocus(i int) {
	f.inputs[f.focus].Blur()
	f.focus = i
	f.inputs[f.focus].Focus()
}

func (f *editForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// receipt merges the form values over the receipt being edited.
func (f editForm) receipt() (model.Receipt, error) {
	out := f.base.Clone()
	out.Merchant = strings.TrimSpace(f.inputs[fieldMerchant].Value())
	out.Category = strings.TrimSpace(f.inputs[fieldCategory].Value())

	out.Date = time.Time{}
	if raw := strings.TrimSpace(f.inputs[fieldDate].Value()); raw != "" {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			return model.Receipt{}, fmt.Errorf("%w: date must look like %s", errInvalidField, dateLayout)
		}
		out.Date = date
	}

	out.Total = 0
	if raw := strings.TrimSpace(strings.TrimPrefix(f.inputs[fieldTotal].Value(), "$")); raw != "" {
		total, err := strconv.ParseFloat(raw, 64)
		if err != nil || total < 0 {
			return model.Receipt{}, fmt.Errorf("%w: total must be a non-negative number", errInvalidField)
		}
		out.Total = total
	}

	return out, nil
}
