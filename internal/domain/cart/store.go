package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/averlon/storefront/internal/domain/catalog"
	"github.com/averlon/storefront/internal/domain/identity"
	"github.com/averlon/storefront/internal/domain/order"
)

// Slots is the local persistence port for carts, one key-value slot per
// identity (identity.GuestKey or a user id). Load returns (nil, nil) when
// the slot is empty or absent.
type Slots interface {
	Load(ctx context.Context, key string) (*Cart, error)
	Save(ctx context.Context, key string, c *Cart) error
	Clear(ctx context.Context, key string) error
}

// Item is the catalog snapshot handed to Add.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Image     string
}

// Store maintains the authoritative cart for one shopper session and
// reconciles ownership transitions between guest and authenticated
// identities.
//
// Stock enforcement here is advisory only: quantities are clamped against
// the last known stock value, and a failed stock lookup never blocks a
// mutation. The checkout transaction is the correctness boundary.
//
// Identity changes are pushed in by the host's auth integration via
// SetOwner; the Store holds no subscription of its own.
type Store struct {
	slots Slots
	stock catalog.StockReader
	lg    *zap.Logger

	mu        sync.Mutex
	owner     identity.Identity
	cart      Cart
	selection []string
}

// NewStore creates a Store owned by the guest identity with an empty cart.
// Call Restore to load the persisted guest cart.
func NewStore(slots Slots, stock catalog.StockReader, lg *zap.Logger) *Store {
	return &Store{
		slots: slots,
		stock: stock,
		lg:    lg,
	}
}

// Restore loads the persisted cart for the current identity, replacing the
// in-memory cart.
func (s *Store) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.slots.Load(ctx, s.owner.SlotKey())
	if err != nil {
		return errors.Wrap(err, "load cart slot")
	}
	if saved != nil {
		s.cart = saved.clone()
	}
	return nil
}

// Owner returns the identity currently owning the cart.
func (s *Store) Owner() identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Snapshot returns a copy of the current cart.
func (s *Store) Snapshot() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.clone()
}

// Add puts qty units of item into the cart, summing with any existing line
// for the same product. The added quantity is clamped to the stock headroom
// when stock is known; zero headroom makes the call a logged no-op. A
// failed stock lookup is treated as unknown stock and does not block the
// add.
func (s *Store) Add(ctx context.Context, item Item, qty int) error {
	if qty < 1 {
		qty = 1
	}

	stock, tracked := s.lookupStock(ctx, item.ProductID)

	s.mu.Lock()
	defer s.mu.Unlock()

	add := qty
	if tracked {
		headroom := stock - s.cart.Quantity(item.ProductID)
		if headroom < 0 {
			headroom = 0
		}
		if add > headroom {
			s.lg.Warn("add quantity clamped to stock headroom",
				zap.String("product_id", item.ProductID),
				zap.Int("requested", qty),
				zap.Int("headroom", headroom),
			)
			add = headroom
		}
		if add == 0 {
			return nil
		}
	}

	if line := s.cart.find(item.ProductID); line != nil {
		line.Quantity += add
	} else {
		s.cart.Lines = append(s.cart.Lines, Line{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Image:     item.Image,
			Quantity:  add,
		})
	}
	return s.persistLocked(ctx)
}

// UpdateQuantity sets the quantity of an existing line. The value is
// clamped to a minimum of 1, then to the known stock (but never below 1:
// setting zero must not remove the line, and a line at quantity zero is
// not representable). Absent products are a no-op.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		qty = 1
	}

	stock, tracked := s.lookupStock(ctx, productID)

	s.mu.Lock()
	defer s.mu.Unlock()

	line := s.cart.find(productID)
	if line == nil {
		return nil
	}

	if tracked && qty > stock {
		clamped := stock
		if clamped < 1 {
			clamped = 1
		}
		s.lg.Warn("quantity clamped to stock",
			zap.String("product_id", productID),
			zap.Int("requested", qty),
			zap.Int("stock", stock),
		)
		qty = clamped
	}

	line.Quantity = qty
	return s.persistLocked(ctx)
}

// Remove unconditionally drops the line for productID.
func (s *Store) Remove(ctx context.Context, productID string) error {
	return s.RemoveMany(ctx, []string{productID})
}

// RemoveMany unconditionally drops all lines matching the given ids.
func (s *Store) RemoveMany(ctx context.Context, productIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart.remove(productIDs...)
	return s.persistLocked(ctx)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = Cart{}
	s.selection = nil
	return s.persistLocked(ctx)
}

// SetOwner applies an identity transition.
//
// Guest to user: the guest cart and the user's previously saved cart are
// merged, adopted as the active cart, persisted under the user's slot, and
// the guest slot is reset to empty so a later logout cannot resurrect it.
//
// User to guest: the active cart is discarded and the guest slot zeroed;
// the signed-out user's cart stays in its own slot untouched.
//
// User to a different user is treated as logout then login.
func (s *Store) SetOwner(ctx context.Context, to identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner.SlotKey() == to.SlotKey() {
		return nil
	}

	if !s.owner.IsGuest() {
		// Logout semantics: fresh empty guest cart, guest slot zeroed.
		s.cart = Cart{}
		s.selection = nil
		s.owner = identity.Guest()
		if err := s.slots.Clear(ctx, identity.GuestKey); err != nil {
			return errors.Wrap(err, "clear guest slot")
		}
	}

	if to.IsGuest() {
		return nil
	}

	// Login semantics: merge the active guest cart with the user's saved one.
	saved, err := s.slots.Load(ctx, to.SlotKey())
	if err != nil {
		return errors.Wrap(err, "load user cart slot")
	}

	merged := s.cart
	if saved != nil {
		merged = Merge(s.cart, *saved)
	}

	s.cart = merged
	s.owner = to
	s.selection = nil

	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	if err := s.slots.Clear(ctx, identity.GuestKey); err != nil {
		return errors.Wrap(err, "clear guest slot")
	}
	return nil
}

// PrepareCheckout records which subset of the cart the shopper intends to
// purchase and returns the derived checkout lines. An empty ids list
// selects the whole cart. The cart itself is not mutated.
func (s *Store) PrepareCheckout(ids []string) []order.Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = append([]string(nil), ids...)
	return s.selectionLocked()
}

// Selection re-derives the checkout lines for the recorded selection
// against the current cart contents.
func (s *Store) Selection() []order.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectionLocked()
}

func (s *Store) selectionLocked() []order.Line {
	want := make(map[string]struct{}, len(s.selection))
	for _, id := range s.selection {
		want[id] = struct{}{}
	}

	var lines []order.Line
	for _, l := range s.cart.Lines {
		if len(want) > 0 {
			if _, ok := want[l.ProductID]; !ok {
				continue
			}
		}
		lines = append(lines, order.Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return lines
}

// lookupStock queries advisory stock, degrading lookup failures to
// "unknown stock" per the two-phase enforcement policy.
func (s *Store) lookupStock(ctx context.Context, productID string) (int, bool) {
	stock, tracked, err := s.stock.Stock(ctx, productID)
	if err != nil {
		s.lg.Warn("stock lookup failed, proceeding unclamped",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return 0, false
	}
	return stock, tracked
}

func (s *Store) persistLocked(ctx context.Context) error {
	c := s.cart.clone()
	if err := s.slots.Save(ctx, s.owner.SlotKey(), &c); err != nil {
		return errors.Wrap(err, "save cart slot")
	}
	return nil
}
