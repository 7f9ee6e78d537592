package service

import (
	"context"
	"errors"
	"testing"

	"orderdesk/internal/domain"
	"orderdesk/internal/notify"
	"orderdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock repositories for testing
type mockOrderRepository struct {
	orders map[uuid.UUID]*domain.Order
	failOn string
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if m.failOn == "create" {
		return errors.New("boom")
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, exists := m.orders[id]
	if !exists {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	result := []*domain.Order{}
	for _, order := range m.orders {
		if order.UserID == userID {
			result = append(result, order)
		}
	}
	return result, nil
}

func (m *mockOrderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	result := []*domain.Order{}
	for _, order := range m.orders {
		result = append(result, order)
	}
	return result, nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	order, exists := m.orders[id]
	if !exists {
		return repository.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) add(price float64) *domain.Product {
	p := &domain.Product{ID: uuid.New(), Name: "item", Price: price, Available: true}
	m.products[p.ID] = p
	return p
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, exists := m.products[product.ID]; !exists {
		return repository.ErrProductNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, exists := m.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Product, error) {
	result := []*domain.Product{}
	for _, id := range ids {
		if product, exists := m.products[id]; exists {
			result = append(result, product)
		}
	}
	return result, nil
}

func (m *mockProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	result := []*domain.Product{}
	for _, product := range m.products {
		result = append(result, product)
	}
	return result, nil
}

// capturingPublisher records every published event
type capturingPublisher struct {
	events []notify.Event
}

func (c *capturingPublisher) Publish(ctx context.Context, ev notify.Event) {
	c.events = append(c.events, ev)
}

func (c *capturingPublisher) named(name string) []notify.Event {
	result := []notify.Event{}
	for _, ev := range c.events {
		if ev.Name == name {
			result = append(result, ev)
		}
	}
	return result
}

func newOrderServiceForTest() (OrderService, *mockOrderRepository, *mockProductRepository, *capturingPublisher) {
	orderRepo := newMockOrderRepository()
	productRepo := newMockProductRepository()
	publisher := &capturingPublisher{}
	return NewOrderService(orderRepo, productRepo, publisher), orderRepo, productRepo, publisher
}

func user() Identity {
	return Identity{ID: uuid.New(), Role: domain.RoleUser}
}

func admin() Identity {
	return Identity{ID: uuid.New(), Role: domain.RoleAdmin}
}

func TestCreateOrderSnapshotsPricesAndComputesTotal(t *testing.T) {
	svc, orderRepo, productRepo, publisher := newOrderServiceForTest()
	ctx := context.Background()

	coffee := productRepo.add(3.50)
	cake := productRepo.add(5.25)

	caller := user()
	order, err := svc.Create(ctx, caller, "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: coffee.ID, Quantity: 2},
		{ProductID: cake.ID, Quantity: 1, Note: "no nuts"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusNew, order.Status)
	assert.Equal(t, caller.ID, order.UserID)
	assert.InDelta(t, 2*3.50+5.25, order.Total, 1e-9)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 3.50, order.Items[0].Price)
	assert.Equal(t, "no nuts", order.Items[1].Note)

	// Later catalog edits must not touch the stored line price
	coffee.Price = 99.0
	stored, err := orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.50, stored.Items[0].Price)

	created := publisher.named(notify.EventOrderCreated)
	require.Len(t, created, 1)
	assert.Equal(t, notify.ScopeBroadcast, created[0].Scope)
	assert.Equal(t, order.ID, created[0].Order.ID)
}

func TestCreateOrderRejectsEmptyAndInvalidItems(t *testing.T) {
	svc, orderRepo, productRepo, publisher := newOrderServiceForTest()
	ctx := context.Background()

	product := productRepo.add(2.00)
	caller := user()

	_, err := svc.Create(ctx, caller, "Ada", "ada@example.com", nil)
	assert.ErrorIs(t, err, ErrNoItems)

	_, err = svc.Create(ctx, caller, "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 0},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Create(ctx, caller, "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: -3},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	// Nothing persisted, nothing published
	assert.Empty(t, orderRepo.orders)
	assert.Empty(t, publisher.events)
}

func TestCreateOrderUnknownProductFailsWholeOrder(t *testing.T) {
	svc, orderRepo, productRepo, publisher := newOrderServiceForTest()
	ctx := context.Background()

	known := productRepo.add(4.00)

	_, err := svc.Create(ctx, user(), "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: known.ID, Quantity: 1},
		{ProductID: uuid.New(), Quantity: 1},
	})
	assert.ErrorIs(t, err, repository.ErrProductNotFound)

	assert.Empty(t, orderRepo.orders)
	assert.Empty(t, publisher.events)
}

func TestListAllRequiresAdmin(t *testing.T) {
	svc, _, productRepo, _ := newOrderServiceForTest()
	ctx := context.Background()

	product := productRepo.add(1.00)
	owner := user()
	_, err := svc.Create(ctx, owner, "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)

	_, err = svc.ListAll(ctx, owner)
	assert.ErrorIs(t, err, ErrForbidden)

	orders, err := svc.ListAll(ctx, admin())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestListMineReturnsOnlyCallersOrders(t *testing.T) {
	svc, _, productRepo, _ := newOrderServiceForTest()
	ctx := context.Background()

	product := productRepo.add(1.00)
	alice := user()
	bob := user()

	_, err := svc.Create(ctx, alice, "Alice", "alice@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, "Bob", "bob@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 2},
	})
	require.NoError(t, err)

	orders, err := svc.ListMine(ctx, alice)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, alice.ID, orders[0].UserID)
}

func TestUpdateStatusIsAdminOnlyAndEmitsBothEvents(t *testing.T) {
	svc, _, productRepo, publisher := newOrderServiceForTest()
	ctx := context.Background()

	product := productRepo.add(1.00)
	owner := user()
	order, err := svc.Create(ctx, owner, "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)

	// The owner cannot drive the status lifecycle
	_, err = svc.UpdateStatus(ctx, owner, order.ID, "confirmed")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateStatus(ctx, admin(), order.ID, "baking")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err := svc.UpdateStatus(ctx, admin(), order.ID, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, updated.Status)

	broadcast := publisher.named(notify.EventOrderUpdated)
	require.Len(t, broadcast, 1)
	assert.Equal(t, notify.ScopeBroadcast, broadcast[0].Scope)

	owned := publisher.named(notify.EventMyOrderUpdated)
	require.Len(t, owned, 1)
	assert.Equal(t, notify.ScopeOwner, owned[0].Scope)
	assert.Equal(t, owner.ID, owned[0].OwnerID)
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	svc, _, _, _ := newOrderServiceForTest()

	_, err := svc.UpdateStatus(context.Background(), admin(), uuid.New(), "confirmed")
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestUpdateStatusAdminMayLeaveTerminalStates(t *testing.T) {
	svc, _, productRepo, _ := newOrderServiceForTest()
	ctx := context.Background()

	product := productRepo.add(1.00)
	order, err := svc.Create(ctx, user(), "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, admin(), order.ID, "completed")
	require.NoError(t, err)

	// The status override is unrestricted, unlike the cancel path
	reopened, err := svc.UpdateStatus(ctx, admin(), order.ID, "prepared")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPrepared, reopened.Status)
}

func TestCancelByOwnerAndByAdmin(t *testing.T) {
	svc, _, productRepo, publisher := newOrderServiceForTest()
	ctx := context.Background()

	product := productRepo.add(1.00)
	owner := user()

	first, err := svc.Create(ctx, owner, "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)
	second, err := svc.Create(ctx, owner, "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	cancelled, err = svc.Cancel(ctx, admin(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	canceledEvents := publisher.named(notify.EventOrderCanceled)
	assert.Len(t, canceledEvents, 2)
	ownedEvents := publisher.named(notify.EventMyOrderUpdated)
	require.Len(t, ownedEvents, 2)
	assert.Equal(t, owner.ID, ownedEvents[0].OwnerID)
}

func TestCancelByNonOwnerIsForbidden(t *testing.T) {
	svc, _, productRepo, publisher := newOrderServiceForTest()
	ctx := context.Background()

	product := productRepo.add(1.00)
	order, err := svc.Create(ctx, user(), "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)
	publisher.events = nil

	_, err = svc.Cancel(ctx, user(), order.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, publisher.events)
}

func TestCancelFinishedOrderConflicts(t *testing.T) {
	svc, _, productRepo, publisher := newOrderServiceForTest()
	ctx := context.Background()

	product := productRepo.add(1.00)
	owner := user()
	order, err := svc.Create(ctx, owner, "Ada", "ada@example.com", []OrderItemInput{
		{ProductID: product.ID, Quantity: 1},
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, owner, order.ID)
	require.NoError(t, err)
	publisher.events = nil

	// Double cancel hits the terminal guard, even for an admin
	_, err = svc.Cancel(ctx, owner, order.ID)
	assert.ErrorIs(t, err, ErrOrderFinished)
	_, err = svc.Cancel(ctx, admin(), order.ID)
	assert.ErrorIs(t, err, ErrOrderFinished)
	assert.Empty(t, publisher.events)

	_, err = svc.UpdateStatus(ctx, admin(), order.ID, "completed")
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, owner, order.ID)
	assert.ErrorIs(t, err, ErrOrderFinished)
}

func TestProperty_OrderTotalIsSumOfLineSnapshots(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total equals the sum of price times quantity over all lines", prop.ForAll(
		func(prices []float64, quantities []int) bool {
			if len(prices) == 0 {
				return true
			}

			svc, _, productRepo, _ := newOrderServiceForTest()
			ctx := context.Background()

			items := make([]OrderItemInput, 0, len(prices))
			expected := 0.0
			for i, price := range prices {
				qty := 1
				if i < len(quantities) {
					qty = quantities[i]
				}
				product := productRepo.add(price)
				items = append(items, OrderItemInput{ProductID: product.ID, Quantity: qty})
				expected += price * float64(qty)
			}

			order, err := svc.Create(ctx, user(), "Ada", "ada@example.com", items)
			if err != nil {
				return false
			}

			diff := order.Total - expected
			return diff < 1e-6 && diff > -1e-6
		},
		gen.SliceOf(gen.Float64Range(0, 1000)),
		gen.SliceOf(gen.IntRange(1, 20)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
