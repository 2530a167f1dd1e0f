package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/averlon/storefront/internal/domain/identity"
)

// --- Mock implementations ---

// mockSlots is an in-memory cart.Slots with optional failure injection.
type mockSlots struct {
	slots   map[string]Cart
	loadErr error
	saveErr error
}

func newMockSlots() *mockSlots {
	return &mockSlots{slots: make(map[string]Cart)}
}

func (m *mockSlots) Load(_ context.Context, key string) (*Cart, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	c, ok := m.slots[key]
	if !ok {
		return nil, nil
	}
	out := c.clone()
	return &out, nil
}

func (m *mockSlots) Save(_ context.Context, key string, c *Cart) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.slots[key] = c.clone()
	return nil
}

func (m *mockSlots) Clear(_ context.Context, key string) error {
	delete(m.slots, key)
	return nil
}

// mockStock reports fixed stock levels; ids absent from the map are
// untracked.
type mockStock struct {
	levels map[string]int
	err    error
}

func (m *mockStock) Stock(_ context.Context, productID string) (int, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	stock, ok := m.levels[productID]
	return stock, ok, nil
}

// --- Helpers ---

func testItem(productID string) Item {
	return Item{
		ProductID: productID,
		Name:      "Product " + productID,
		UnitPrice: decimal.RequireFromString("9.90"),
	}
}

func newTestStore(slots Slots, stock *mockStock) *Store {
	return NewStore(slots, stock, zap.NewNop())
}

// --- Tests ---

func TestAdd_NewLine(t *testing.T) {
	slots := newMockSlots()
	s := newTestStore(slots, &mockStock{levels: map[string]int{"X": 10}})

	require.NoError(t, s.Add(context.Background(), testItem("X"), 3))

	assert.Equal(t, 3, s.Snapshot().Quantity("X"))
	assert.Equal(t, 3, slots.slots[identity.GuestKey].Quantity("X"), "cart persisted to guest slot")
}

func TestAdd_SumsExistingLine(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{"X": 10}})

	require.NoError(t, s.Add(context.Background(), testItem("X"), 2))
	require.NoError(t, s.Add(context.Background(), testItem("X"), 3))

	snap := s.Snapshot()
	assert.Equal(t, 5, snap.Quantity("X"))
	assert.Len(t, snap.Lines, 1, "at most one line per product")
}

func TestAdd_ClampIdempotence(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{"X": 3}})

	// First add clamps 10 down to the full stock of 3.
	require.NoError(t, s.Add(context.Background(), testItem("X"), 10))
	assert.Equal(t, 3, s.Snapshot().Quantity("X"))

	// Second identical add has zero headroom and is a no-op.
	require.NoError(t, s.Add(context.Background(), testItem("X"), 10))
	assert.Equal(t, 3, s.Snapshot().Quantity("X"))
}

func TestAdd_UnknownStockProceeds(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{err: errors.New("catalog unreachable")})

	require.NoError(t, s.Add(context.Background(), testItem("X"), 50))

	assert.Equal(t, 50, s.Snapshot().Quantity("X"), "lookup failure must not block the add")
}

func TestAdd_UntrackedProductUnclamped(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{}})

	require.NoError(t, s.Add(context.Background(), testItem("svc"), 99))

	assert.Equal(t, 99, s.Snapshot().Quantity("svc"))
}

func TestUpdateQuantity_ZeroClampsToOne(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{"X": 10}})
	require.NoError(t, s.Add(context.Background(), testItem("X"), 5))

	require.NoError(t, s.UpdateQuantity(context.Background(), "X", 0))

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Quantity("X"), "zero clamps to 1, does not remove")
	assert.Len(t, snap.Lines, 1)
}

func TestUpdateQuantity_ClampsToStock(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{"X": 4}})
	require.NoError(t, s.Add(context.Background(), testItem("X"), 2))

	require.NoError(t, s.UpdateQuantity(context.Background(), "X", 100))

	assert.Equal(t, 4, s.Snapshot().Quantity("X"))
}

func TestUpdateQuantity_AbsentProductNoop(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{"X": 4}})

	require.NoError(t, s.UpdateQuantity(context.Background(), "X", 2))

	assert.True(t, s.Snapshot().IsEmpty())
}

func TestRemoveAndClear(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{"A": 9, "B": 9, "C": 9}})
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, testItem("A"), 1))
	require.NoError(t, s.Add(ctx, testItem("B"), 1))
	require.NoError(t, s.Add(ctx, testItem("C"), 1))

	require.NoError(t, s.Remove(ctx, "A"))
	assert.Equal(t, 0, s.Snapshot().Quantity("A"))

	require.NoError(t, s.RemoveMany(ctx, []string{"B", "C"}))
	assert.True(t, s.Snapshot().IsEmpty())
}

func TestSetOwner_LoginMergesCarts(t *testing.T) {
	slots := newMockSlots()
	slots.slots["u1"] = Cart{Lines: []Line{line("A", 1), line("C", 3)}}

	s := newTestStore(slots, &mockStock{levels: map[string]int{"A": 99, "B": 99, "C": 99}})
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, testItem("A"), 2))
	require.NoError(t, s.Add(ctx, testItem("B"), 1))

	require.NoError(t, s.SetOwner(ctx, identity.User("u1")))

	assert.Equal(t, map[string]int{"A": 3, "B": 1, "C": 3}, quantities(s.Snapshot()))
	assert.Equal(t, map[string]int{"A": 3, "B": 1, "C": 3}, quantities(slots.slots["u1"]), "merged cart persisted under user slot")

	_, guestExists := slots.slots[identity.GuestKey]
	assert.False(t, guestExists, "guest slot reset on login")
}

func TestSetOwner_LogoutResetsNotResurrects(t *testing.T) {
	slots := newMockSlots()
	s := newTestStore(slots, &mockStock{levels: map[string]int{"A": 99}})
	ctx := context.Background()

	require.NoError(t, s.SetOwner(ctx, identity.User("u1")))
	require.NoError(t, s.Add(ctx, testItem("A"), 5))

	require.NoError(t, s.SetOwner(ctx, identity.Guest()))
	assert.True(t, s.Snapshot().IsEmpty(), "logout starts a fresh empty cart")
	assert.True(t, s.Owner().IsGuest())

	// Idempotent: a second logout is a no-op.
	require.NoError(t, s.SetOwner(ctx, identity.Guest()))
	assert.True(t, s.Snapshot().IsEmpty())

	// The signed-out user's cart stays in its own slot.
	assert.Equal(t, map[string]int{"A": 5}, quantities(slots.slots["u1"]))
}

func TestSetOwner_UserToUserIsLogoutThenLogin(t *testing.T) {
	slots := newMockSlots()
	slots.slots["u2"] = Cart{Lines: []Line{line("C", 7)}}

	s := newTestStore(slots, &mockStock{levels: map[string]int{"A": 99, "C": 99}})
	ctx := context.Background()
	require.NoError(t, s.SetOwner(ctx, identity.User("u1")))
	require.NoError(t, s.Add(ctx, testItem("A"), 5))

	require.NoError(t, s.SetOwner(ctx, identity.User("u2")))

	// u1's lines do not leak into u2's cart.
	assert.Equal(t, map[string]int{"C": 7}, quantities(s.Snapshot()))
	assert.Equal(t, "u2", s.Owner().UserID())
}

func TestSetOwner_SameIdentityNoop(t *testing.T) {
	slots := newMockSlots()
	s := newTestStore(slots, &mockStock{levels: map[string]int{"A": 99}})
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, testItem("A"), 2))

	require.NoError(t, s.SetOwner(ctx, identity.Guest()))

	assert.Equal(t, 2, s.Snapshot().Quantity("A"))
}

func TestRestore_RoundTrip(t *testing.T) {
	slots := newMockSlots()
	first := newTestStore(slots, &mockStock{levels: map[string]int{"A": 99, "B": 99}})
	ctx := context.Background()
	require.NoError(t, first.Add(ctx, testItem("A"), 2))
	require.NoError(t, first.Add(ctx, testItem("B"), 4))

	// A fresh store over the same slots reproduces the cart.
	second := newTestStore(slots, &mockStock{levels: map[string]int{}})
	require.NoError(t, second.Restore(ctx))

	assert.Equal(t, quantities(first.Snapshot()), quantities(second.Snapshot()))
}

func TestPrepareCheckout_SubsetAndAll(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{"A": 9, "B": 9}})
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, testItem("A"), 2))
	require.NoError(t, s.Add(ctx, testItem("B"), 3))

	lines := s.PrepareCheckout([]string{"B"})
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].ProductID)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("9.90").Equal(lines[0].UnitPrice))

	// Cart itself is untouched.
	assert.Equal(t, map[string]int{"A": 2, "B": 3}, quantities(s.Snapshot()))

	// Empty selection means the whole cart.
	assert.Len(t, s.PrepareCheckout(nil), 2)
}

func TestSelection_TracksCartChanges(t *testing.T) {
	s := newTestStore(newMockSlots(), &mockStock{levels: map[string]int{"A": 9}})
	ctx := context.Background()
	require.NoError(t, s.Add(ctx, testItem("A"), 2))

	_ = s.PrepareCheckout([]string{"A"})
	require.NoError(t, s.UpdateQuantity(ctx, "A", 5))

	lines := s.Selection()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity, "selection re-derives from current cart")
}
