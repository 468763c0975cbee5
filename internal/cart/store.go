package cart

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/catalog"
)

var (
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrInvalidQuantity = errors.New("quantity must be an integer")
	ErrLocked          = errors.New("cart is locked by a created order")
)

// Store holds the cart of one browsing session. It is never persisted.
// At most one line exists per product id and every line has a positive
// quantity. Once locked, the lines match the order created from them and
// every mutation fails with ErrLocked.
type Store struct {
	mu       sync.Mutex
	lines    map[int64]*Line
	locked   bool
	onChange []func(Totals)
}

func NewStore() *Store {
	return &Store{lines: make(map[int64]*Line)}
}

// OnChange registers fn to be called with the new totals after every
// mutation that changed the cart.
func (s *Store) OnChange(fn func(Totals)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// Add increments the quantity of the product's line, creating it with
// quantity 1 when absent.
func (s *Store) Add(p catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !p.InStock {
		return fmt.Errorf("%w: product %d", ErrOutOfStock, p.ID)
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrLocked
	}
	if l, ok := s.lines[p.ID]; ok {
		l.Quantity++
	} else {
		s.lines[p.ID] = &Line{Product: p, Quantity: 1}
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

// Remove deletes the product's line. An absent product is a no-op.
func (s *Store) Remove(productID int64) error {
	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrLocked
	}
	_, ok := s.lines[productID]
	delete(s.lines, productID)
	s.mu.Unlock()

	if ok {
		s.notify()
	}
	return nil
}

// SetQuantity overwrites the line quantity. A quantity of zero or less
// removes the line. Unknown products are ignored since there is no snapshot
// to build a line from.
func (s *Store) SetQuantity(productID int64, quantity int) error {
	if quantity <= 0 {
		return s.Remove(productID)
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrLocked
	}
	l, ok := s.lines[productID]
	changed := ok && l.Quantity != quantity
	if changed {
		l.Quantity = quantity
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// SetQuantityText parses raw as an integer quantity. Non-numeric input is
// rejected and leaves the cart untouched.
func (s *Store) SetQuantityText(productID int64, raw string) error {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidQuantity, raw)
	}
	return s.SetQuantity(productID, qty)
}

// Lock freezes the cart. The checkout calls it before creating an order so
// the displayed totals keep matching that order.
func (s *Store) Lock() {
	s.mu.Lock()
	s.locked = true
	s.mu.Unlock()
}

// Unlock reopens the cart after order creation failed.
func (s *Store) Unlock() {
	s.mu.Lock()
	s.locked = false
	s.mu.Unlock()
}

func (s *Store) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Lines returns a copy of the current lines ordered by product id.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linesLocked()
}

func (s *Store) Items() []Item {
	lines := s.Lines()
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, Item{ProductID: l.Product.ID, Quantity: l.Quantity})
	}
	return items
}

func (s *Store) Totals() Totals {
	return totalsOf(s.Lines())
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

func (s *Store) linesLocked() []Line {
	out := make([]Line, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product.ID < out[j].Product.ID })
	return out
}

func (s *Store) notify() {
	s.mu.Lock()
	hooks := append(([]func(Totals))(nil), s.onChange...)
	lines := s.linesLocked()
	s.mu.Unlock()

	if len(hooks) == 0 {
		return
	}
	t := totalsOf(lines)
	for _, fn := range hooks {
		fn(t)
	}
}

func totalsOf(lines []Line) Totals {
	t := Totals{Lines: make([]LineTotal, 0, len(lines)), GrandTotal: decimal.Zero}
	for _, l := range lines {
		sub := l.Subtotal()
		t.Lines = append(t.Lines, LineTotal{Line: l, Total: sub})
		t.GrandTotal = t.GrandTotal.Add(sub)
		t.ItemCount += l.Quantity
	}
	return t
}
