package storefront

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/pricing"
)

const cartKey = "cart"

// CartStore holds the customer's selections and persists every change.
type CartStore struct {
	storage Storage
	mu      sync.Mutex
	lines   []domain.CartLine
}

// NewCartStore loads any saved cart from storage.
func NewCartStore(storage Storage) (*CartStore, error) {
	if storage == nil {
		return nil, fmt.Errorf("storefront: cart storage is required")
	}
	c := &CartStore{storage: storage}
	data, ok, err := storage.Load(cartKey)
	if err != nil {
		return nil, err
	}
	if ok && len(data) > 0 {
		if err := json.Unmarshal(data, &c.lines); err != nil {
			// A corrupt cart is dropped rather than blocking the storefront.
			c.lines = nil
		}
	}
	return c, nil
}

// LineKey identifies a line by item, variant and the set of extras.
func LineKey(line domain.CartLine) string {
	ids := make([]string, 0, len(line.Extras))
	for _, extra := range line.Extras {
		ids = append(ids, extra.ID)
	}
	sort.Strings(ids)
	return strings.Join([]string{line.ItemID, line.VariantName, strings.Join(ids, ",")}, "|")
}

// Add appends line, merging its quantity into an identical existing line.
func (c *CartStore) Add(line domain.CartLine) error {
	if strings.TrimSpace(line.ItemID) == "" {
		return newValidationError("item is required", "itemId")
	}
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := LineKey(line)
	for i := range c.lines {
		if LineKey(c.lines[i]) == key {
			c.lines[i].Quantity += line.Quantity
			return c.persistLocked()
		}
	}
	c.lines = append(c.lines, line)
	return c.persistLocked()
}

// SetQuantity updates the line identified by key. Zero or less removes it.
func (c *CartStore) SetQuantity(key string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lines {
		if LineKey(c.lines[i]) != key {
			continue
		}
		if quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity = quantity
		}
		return c.persistLocked()
	}
	return nil
}

// Remove deletes the line identified by key.
func (c *CartStore) Remove(key string) error {
	return c.SetQuantity(key, 0)
}

// Clear empties the cart and its stored copy.
func (c *CartStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	return c.storage.Delete(cartKey)
}

// Lines returns a copy of the current lines.
func (c *CartStore) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CartLine, len(c.lines))
	for i, line := range c.lines {
		out[i] = line
		out[i].Extras = append([]domain.CartExtra(nil), line.Extras...)
	}
	return out
}

// Empty reports whether the cart has no lines.
func (c *CartStore) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines) == 0
}

// Totals prices the cart. It is recomputed on every call.
func (c *CartStore) Totals(method domain.DeliveryMethod, fees domain.DeliveryFeeTable, vat domain.VATConfig) (domain.PricingSnapshot, error) {
	return pricing.ComputeTotals(c.Lines(), method, fees, vat)
}

func (c *CartStore) persistLocked() error {
	data, err := json.Marshal(c.lines)
	if err != nil {
		return fmt.Errorf("storefront: encode cart: %w", err)
	}
	return c.storage.Save(cartKey, data)
}
