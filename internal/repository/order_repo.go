package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/simtrek/esim_api/internal/models"
)

// OrderRepository handles data access for storefront orders and their items.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order and its items in one transaction.
func (r *OrderRepository) Create(order *models.Order, items []models.OrderItem) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const orderQ = `
		INSERT INTO orders (reference, customer_email, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(orderQ, order.Reference, order.CustomerEmail, order.Status).
		Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}

	const itemQ = `
		INSERT INTO order_items
			(order_id, sku, quantity, sell_price, currency, priced_provider_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.QueryRow(itemQ,
			order.ID, items[i].SKU, items[i].Quantity, items[i].SellPrice,
			items[i].Currency, items[i].PricedProviderID, items[i].Status,
		).Scan(&items[i].ID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByReference returns an order by its external reference.
func (r *OrderRepository) GetByReference(reference string) (*models.Order, error) {
	const q = `SELECT * FROM orders WHERE reference = $1 LIMIT 1`
	var order models.Order
	if err := r.db.Get(&order, q, reference); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetItems returns all items of an order.
func (r *OrderRepository) GetItems(orderID int) ([]models.OrderItem, error) {
	const q = `SELECT * FROM order_items WHERE order_id = $1 ORDER BY id`
	var items []models.OrderItem
	if err := r.db.Select(&items, q, orderID); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItemByID returns one order item.
func (r *OrderRepository) GetItemByID(itemID int) (*models.OrderItem, error) {
	const q = `SELECT * FROM order_items WHERE id = $1 LIMIT 1`
	var item models.OrderItem
	if err := r.db.Get(&item, q, itemID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// MarkItemFulfilling moves an item to fulfilling and bumps its attempt count.
func (r *OrderRepository) MarkItemFulfilling(itemID int) error {
	const q = `
		UPDATE order_items
		SET status = $2, attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(q, itemID, models.OrderStatusFulfilling)
	return err
}

// MarkItemFulfilled records a successful fulfillment with the provider that
// delivered it and the activation credentials.
func (r *OrderRepository) MarkItemFulfilled(itemID, providerID int, providerProductID, providerOrderRef, iccid, smdpAddress, matchingID, qrPayload string) error {
	const q = `
		UPDATE order_items
		SET status = $2, fulfilled_provider_id = $3, provider_product_id = $4,
		    provider_order_ref = $5, iccid = $6, smdp_address = $7,
		    matching_id = $8, qr_payload = $9, last_error = NULL, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(q, itemID, models.OrderStatusFulfilled, providerID,
		providerProductID, providerOrderRef, iccid, smdpAddress, matchingID, qrPayload)
	return err
}

// MarkItemFailed records a terminal fulfillment failure.
func (r *OrderRepository) MarkItemFailed(itemID int, reason string) error {
	const q = `
		UPDATE order_items
		SET status = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(q, itemID, models.OrderStatusFailed, reason)
	return err
}

// RecordItemError stores the latest attempt error without changing status.
func (r *OrderRepository) RecordItemError(itemID int, reason string) error {
	const q = `UPDATE order_items SET last_error = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Exec(q, itemID, reason)
	return err
}

// RefreshOrderStatus derives the order status from its items: fulfilled when
// all items are fulfilled, failed when any item is failed, otherwise
// fulfilling.
func (r *OrderRepository) RefreshOrderStatus(orderID int) error {
	const q = `
		UPDATE orders SET status = (
			SELECT CASE
				WHEN COUNT(*) FILTER (WHERE status = 'failed') > 0 THEN 'failed'
				WHEN COUNT(*) = COUNT(*) FILTER (WHERE status = 'fulfilled') THEN 'fulfilled'
				ELSE 'fulfilling'
			END
			FROM order_items WHERE order_id = $1
		), updated_at = NOW()
		WHERE id = $1`
	_, err := r.db.Exec(q, orderID)
	return err
}
