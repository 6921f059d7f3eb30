package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Nest-ms-1/orders-ms/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

// CreateOrder inserts the order row and all its item rows in one transaction.
// The caller provides the fully priced aggregate (id, totals, item prices).
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create order tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (id, status, paid, total_amount, total_items, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		order.ID,
		order.Status,
		order.Paid,
		order.TotalAmount,
		order.TotalItems,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, quantity, price)
	              VALUES ($1, $2, $3, $4)`
	for _, item := range order.Items {
		if _, e2 := tx.ExecContext(ctx, itemQuery, order.ID, item.ProductID, item.Quantity, item.Price); e2 != nil {
			return fmt.Errorf("insert order item %d: %w", item.ProductID, e2)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create order tx: %w", err)
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT id, status, paid, paid_at, total_amount, total_items, stripe_charge_id, created_at, updated_at
	          FROM orders WHERE id = $1`

	var order domain.Order
	var chargeID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.Status,
		&order.Paid,
		&order.PaidAt,
		&order.TotalAmount,
		&order.TotalItems,
		&chargeID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	order.StripeChargeID = chargeID.String

	items, err := r.getOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	receipt, err := r.getOrderReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Receipt = receipt

	return &order, nil
}

func (r *Repository) getOrderReceipt(ctx context.Context, orderID uuid.UUID) (*domain.OrderReceipt, error) {
	query := `SELECT order_id, receipt_url, created_at FROM order_receipts WHERE order_id = $1`

	var receipt domain.OrderReceipt
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(&receipt.OrderID, &receipt.ReceiptURL, &receipt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order receipt: %w", err)
	}
	return &receipt, nil
}

func (r *Repository) getOrderItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `SELECT product_id, quantity, price FROM order_items WHERE order_id = $1 ORDER BY product_id`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("item row iteration error: %w", err)
	}
	return items, nil
}

// ListOrders returns one page of order rows (no items) plus the total number
// of rows matching the status filter. A nil status matches all orders.
func (r *Repository) ListOrders(ctx context.Context, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	countQuery := `SELECT COUNT(*) FROM orders WHERE $1::text IS NULL OR status = $1`
	query := `SELECT id, status, paid, paid_at, total_amount, total_items, stripe_charge_id, created_at, updated_at
	          FROM orders
	          WHERE $1::text IS NULL OR status = $1
	          ORDER BY created_at DESC
	          OFFSET $2 LIMIT $3`

	var statusArg sql.NullString
	if status != nil {
		statusArg = sql.NullString{String: string(*status), Valid: true}
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, statusArg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := r.db.QueryContext(ctx, query, statusArg, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders page: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var order domain.Order
		var chargeID sql.NullString
		if err := rows.Scan(
			&order.ID,
			&order.Status,
			&order.Paid,
			&order.PaidAt,
			&order.TotalAmount,
			&order.TotalItems,
			&chargeID,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		order.StripeChargeID = chargeID.String
		orders = append(orders, &order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, total, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	query := `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update order status rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrOrderNotFound
	}

	return r.GetOrderByID(ctx, id)
}

// ApplyPayment marks the order paid and records its receipt in a single
// transaction. The receipt insert is a no-op when a receipt already exists
// for the order, so redelivered payment events cannot create a second one.
func (r *Repository) ApplyPayment(ctx context.Context, id uuid.UUID, chargeID, receiptURL string, paidAt time.Time) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin apply payment tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE orders
	          SET status = $2, paid = TRUE, paid_at = $3, stripe_charge_id = $4, updated_at = NOW()
	          WHERE id = $1`

	res, err := tx.ExecContext(ctx, query, id, domain.OrderStatusPaid, paidAt, chargeID)
	if err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark order paid rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrOrderNotFound
	}

	receiptQuery := `INSERT INTO order_receipts (order_id, receipt_url, created_at)
	                 VALUES ($1, $2, NOW())
	                 ON CONFLICT (order_id) DO NOTHING`
	if _, e2 := tx.ExecContext(ctx, receiptQuery, id, receiptURL); e2 != nil {
		return nil, fmt.Errorf("insert order receipt: %w", e2)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit apply payment tx: %w", err)
	}

	return r.GetOrderByID(ctx, id)
}

func (r *Repository) Close() error {
	return r.db.Close()
}
