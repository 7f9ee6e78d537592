package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderdesk/internal/domain"
	"orderdesk/internal/notify"
	"orderdesk/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrNoItems         = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrInvalidStatus   = errors.New("unknown order status")
	ErrOrderFinished   = errors.New("order already finished")
)

// Identity is the resolved caller of an operation
type Identity struct {
	ID   uuid.UUID
	Role string
}

// Admin reports whether the identity carries the admin role
func (i Identity) Admin() bool {
	return i.Role == domain.RoleAdmin
}

// OrderItemInput is one requested order position
type OrderItemInput struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Note      string    `json:"note,omitempty"`
}

// EventPublisher delivers order lifecycle events. Delivery is advisory and
// fire-and-forget: implementations log failures instead of returning them.
type EventPublisher interface {
	Publish(ctx context.Context, ev notify.Event)
}

// OrderService defines the order engine: creation, pricing, status
// transitions and the authorization of those transitions.
type OrderService interface {
	Create(ctx context.Context, caller Identity, customer, contact string, items []OrderItemInput) (*domain.Order, error)
	ListMine(ctx context.Context, caller Identity) ([]*domain.Order, error)
	ListAll(ctx context.Context, caller Identity) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, caller Identity, orderID uuid.UUID, status string) (*domain.Order, error)
	Cancel(ctx context.Context, caller Identity, orderID uuid.UUID) (*domain.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	events      EventPublisher
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	events EventPublisher,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		events:      events,
	}
}

// Create validates the requested items against the catalog, snapshots the
// current product prices into the order lines, computes the total and
// persists order plus lines atomically. On success an orderCreated event is
// broadcast and the fully hydrated order is returned.
func (s *orderService) Create(ctx context.Context, caller Identity, customer, contact string, items []OrderItemInput) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQuantity, item.ProductID)
		}
		if item.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: missing product id", repository.ErrProductNotFound)
		}
		productIDs = append(productIDs, item.ProductID)
	}

	// Single batch lookup; an unknown product fails the whole order rather
	// than silently dropping the line.
	products, err := s.productRepo.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[uuid.UUID]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	now := time.Now()
	order := &domain.Order{
		ID:        uuid.New(),
		Customer:  customer,
		Contact:   contact,
		Status:    domain.StatusNew,
		UserID:    caller.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var total float64
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", repository.ErrProductNotFound, item.ProductID)
		}

		// Price is a snapshot: later catalog edits must not change this order.
		lines = append(lines, domain.OrderLine{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: product.ID,
			Quantity:  item.Quantity,
			Price:     product.Price,
			Note:      item.Note,
			Product:   product,
		})
		total += product.Price * float64(item.Quantity)
	}
	order.Items = lines
	order.Total = total

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.events.Publish(ctx, notify.Broadcast(notify.EventOrderCreated, order))

	return order, nil
}

// ListMine returns all orders owned by the caller, with lines and product
// details
func (s *orderService) ListMine(ctx context.Context, caller Identity) ([]*domain.Order, error) {
	orders, err := s.orderRepo.ListByOwner(ctx, caller.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order across all owners. Admin only.
func (s *orderService) ListAll(ctx context.Context, caller Identity) ([]*domain.Order, error) {
	if !caller.Admin() {
		return nil, ErrForbidden
	}

	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order to the given status. Admin only. The target
// must be a recognized status value, but any status-to-status move is
// allowed: the admin override is deliberately unrestricted, including out of
// terminal states (unlike Cancel).
func (s *orderService) UpdateStatus(ctx context.Context, caller Identity, orderID uuid.UUID, status string) (*domain.Order, error) {
	if !caller.Admin() {
		return nil, ErrForbidden
	}

	parsed, ok := domain.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, parsed); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}

	s.events.Publish(ctx, notify.Broadcast(notify.EventOrderUpdated, order))
	s.events.Publish(ctx, notify.ToOwner(notify.EventMyOrderUpdated, order))

	return order, nil
}

// Cancel moves an order to cancelled. Allowed for the order's owner or an
// admin. Orders in a terminal state cannot be cancelled again: this is the
// one structurally enforced transition rule.
func (s *orderService) Cancel(ctx context.Context, caller Identity, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !caller.Admin() && order.UserID != caller.ID {
		return nil, ErrForbidden
	}

	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: status is %s", ErrOrderFinished, order.Status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, orderID, domain.StatusCancelled); err != nil {
		return nil, err
	}
	order.Status = domain.StatusCancelled
	order.UpdatedAt = time.Now()

	s.events.Publish(ctx, notify.Broadcast(notify.EventOrderCanceled, order))
	s.events.Publish(ctx, notify.ToOwner(notify.EventMyOrderUpdated, order))

	return order, nil
}
