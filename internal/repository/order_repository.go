package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"orderdesk/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListByOwner(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create persists the order and all of its lines in one transaction. Either
// everything lands or nothing does.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (id, customer, contact, status, total, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(
		ctx,
		orderQuery,
		order.ID,
		order.Customer,
		order.Contact,
		order.Status,
		order.Total,
		order.UserID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	lineQuery := `
		INSERT INTO order_items (id, order_id, product_id, quantity, price, note)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, line := range order.Items {
		_, err = tx.ExecContext(
			ctx,
			lineQuery,
			line.ID,
			line.OrderID,
			line.ProductID,
			line.Quantity,
			line.Price,
			line.Note,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByID retrieves an order with its lines and their product details
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `
		SELECT id, customer, contact, status, total, user_id, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	order := &domain.Order{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.Customer,
		&order.Contact,
		&order.Status,
		&order.Total,
		&order.UserID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	lines, err := r.loadLines(ctx, "oi.order_id = $1", id)
	if err != nil {
		return nil, err
	}
	attachLines([]*domain.Order{order}, lines)

	return order, nil
}

// ListByOwner retrieves all orders belonging to the given user, newest first
func (r *orderRepository) ListByOwner(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	query := `
		SELECT id, customer, contact, status, total, user_id, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by owner: %w", err)
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	lines, err := r.loadLines(ctx, "oi.order_id IN (SELECT id FROM orders WHERE user_id = $1)", userID)
	if err != nil {
		return nil, err
	}
	attachLines(orders, lines)

	return orders, nil
}

// ListAll retrieves every order with the owning user attached, newest first
func (r *orderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	query := `
		SELECT o.id, o.customer, o.contact, o.status, o.total, o.user_id,
		       o.created_at, o.updated_at, u.id, u.email, u.role
		FROM orders o
		JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order := &domain.Order{}
		user := &domain.UserSummary{}
		err := rows.Scan(
			&order.ID,
			&order.Customer,
			&order.Contact,
			&order.Status,
			&order.Total,
			&order.UserID,
			&order.CreatedAt,
			&order.UpdatedAt,
			&user.ID,
			&user.Email,
			&user.Role,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		order.User = user
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	lines, err := r.loadLines(ctx, "TRUE")
	if err != nil {
		return nil, err
	}
	attachLines(orders, lines)

	return orders, nil
}

// UpdateStatus sets the status of an order
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	query := `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// loadLines fetches order lines with product details for the orders matched
// by the given where clause, grouped by order ID.
func (r *orderRepository) loadLines(ctx context.Context, where string, args ...interface{}) (map[uuid.UUID][]domain.OrderLine, error) {
	query := fmt.Sprintf(`
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, COALESCE(oi.note, ''),
		       p.id, p.name, p.price, COALESCE(p.category, ''), p.available, p.created_at, p.updated_at
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE %s
	`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	lines := map[uuid.UUID][]domain.OrderLine{}
	for rows.Next() {
		line := domain.OrderLine{}
		product := &domain.Product{}
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.Quantity,
			&line.Price,
			&line.Note,
			&product.ID,
			&product.Name,
			&product.Price,
			&product.Category,
			&product.Available,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		line.Product = product
		lines[line.OrderID] = append(lines[line.OrderID], line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return lines, nil
}

func scanOrders(rows *sql.Rows) ([]*domain.Order, error) {
	orders := []*domain.Order{}
	for rows.Next() {
		order := &domain.Order{}
		err := rows.Scan(
			&order.ID,
			&order.Customer,
			&order.Contact,
			&order.Status,
			&order.Total,
			&order.UserID,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

func attachLines(orders []*domain.Order, lines map[uuid.UUID][]domain.OrderLine) {
	for _, order := range orders {
		if items, ok := lines[order.ID]; ok {
			order.Items = items
		} else {
			order.Items = []domain.OrderLine{}
		}
	}
}
