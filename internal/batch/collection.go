package batch

import (
	"fmt"

	"github.com/Veraticus/receipt-review/internal/model"
)

// ItemPatch carries the fields to merge into an item. Nil fields are left alone.
type ItemPatch struct {
	Receipt    *model.Receipt
	Status     *model.ItemStatus
	Confidence *float64
}

// collection is an insertion-ordered map of batch items plus a cursor.
type collection struct {
	byID    map[string]*model.BatchItem
	retired map[string]struct{}
	order   []string
	cursor  int
}

func newCollection() *collection {
	return &collection{
		byID:    make(map[string]*model.BatchItem),
		retired: make(map[string]struct{}),
	}
}

// load replaces the contents. It fails without mutating on a duplicate id.
func (c *collection) load(items []model.BatchItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("%w: empty id at index %d", ErrDuplicateItem, it.Index)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateItem, it.ID)
		}
		seen[it.ID] = struct{}{}
	}

	c.byID = make(map[string]*model.BatchItem, len(items))
	c.retired = make(map[string]struct{})
	c.order = make([]string, 0, len(items))
	c.cursor = 0
	for _, it := range items {
		item := it.Clone()
		c.byID[item.ID] = &item
		c.order = append(c.order, item.ID)
	}
	return nil
}

func (c *collection) len() int {
	return len(c.order)
}

func (c *collection) get(id string) (*model.BatchItem, bool) {
	item, ok := c.byID[id]
	return item, ok
}

func (c *collection) isRetired(id string) bool {
	_, ok := c.retired[id]
	return ok
}

func (c *collection) position(id string) int {
	for i, oid := range c.order {
		if oid == id {
			return i
		}
	}
	return -1
}

func (c *collection) unknown(id string) error {
	if c.isRetired(id) {
		return fmt.Errorf("%w: %s was discarded", ErrUnknownItem, id)
	}
	return fmt.Errorf("%w: %s", ErrUnknownItem, id)
}

func (c *collection) selectIndex(index int) error {
	if index < 0 || index >= len(c.order) {
		return fmt.Errorf("%w: %d (items: %d)", ErrInvalidIndex, index, len(c.order))
	}
	c.cursor = index
	return nil
}

// checkUpdate validates an update without applying it.
func (c *collection) checkUpdate(id string, patch ItemPatch) error {
	if _, ok := c.byID[id]; !ok {
		return c.unknown(id)
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return fmt.Errorf("%w: status %q", ErrInvalidPatch, *patch.Status)
	}
	if patch.Confidence != nil && (*patch.Confidence < 0 || *patch.Confidence > 1) {
		return fmt.Errorf("%w: confidence %v", ErrInvalidPatch, *patch.Confidence)
	}
	return nil
}

func (c *collection) update(id string, patch ItemPatch) error {
	if err := c.checkUpdate(id, patch); err != nil {
		return err
	}
	item := c.byID[id]

	if patch.Receipt != nil {
		r := patch.Receipt.Clone()
		item.Receipt = &r
	}
	if patch.Confidence != nil {
		item.Confidence = *patch.Confidence
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	} else {
		item.Status = model.StatusEdited
	}
	return nil
}

func (c *collection) discard(id string) error {
	pos := c.position(id)
	if pos < 0 {
		return c.unknown(id)
	}

	wasLast := pos == len(c.order)-1
	c.order = append(c.order[:pos], c.order[pos+1:]...)
	delete(c.byID, id)
	c.retired[id] = struct{}{}

	switch {
	case pos < c.cursor:
		c.cursor--
	case pos == c.cursor && wasLast:
		c.cursor = max(len(c.order)-1, 0)
	}
	return nil
}

// snapshot returns deep copies of the items in display order.
func (c *collection) snapshot() []model.BatchItem {
	out := make([]model.BatchItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id].Clone())
	}
	return out
}

func (c *collection) clear() {
	c.byID = make(map[string]*model.BatchItem)
	c.retired = make(map[string]struct{})
	c.order = nil
	c.cursor = 0
}
