package store

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKey canonicalizes an item key before it touches the inventory
// table. Keys are NFC-normalized and trimmed so byte-different Unicode
// spellings of the same key always resolve to one row.
func NormalizeKey(key string) string {
	return norm.NFC.String(strings.TrimSpace(key))
}

// SetStock writes an absolute stock value for an item, creating the row if
// it does not exist. This is the admin path; reservation flows never set
// absolute values.
func SetStock(ctx context.Context, db DBTX, itemKey string, stock int64) error {
	if stock < 0 {
		return fmt.Errorf("set stock: negative stock %d for %q", stock, itemKey)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO inventory (item_key, stock)
		VALUES (?, ?)
		ON CONFLICT(item_key) DO UPDATE SET stock = excluded.stock
	`, NormalizeKey(itemKey), stock)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}

// DecrementStock conditionally subtracts quantity from an item's stock.
// The decrement applies only when stock >= quantity; applied reports whether
// a row changed. applied=false means the item is unknown or stock is
// insufficient - the two cases are indistinguishable on purpose, both abort
// a reservation the same way.
func DecrementStock(ctx context.Context, db DBTX, itemKey string, quantity int64) (applied bool, err error) {
	res, err := db.ExecContext(ctx, `
		UPDATE inventory
		SET stock = stock - ?
		WHERE item_key = ? AND stock >= ?
	`, quantity, NormalizeKey(itemKey), quantity)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement stock: rows affected: %w", err)
	}
	return rows > 0, nil
}

// RestoreStock adds quantity back to an item's stock when a reservation is
// released. The upsert tolerates a missing row (the add becomes the new
// absolute value), though in practice the row always exists - a decrement
// preceded every restore.
func RestoreStock(ctx context.Context, db DBTX, itemKey string, quantity int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO inventory (item_key, stock)
		VALUES (?, ?)
		ON CONFLICT(item_key) DO UPDATE SET stock = stock + excluded.stock
	`, NormalizeKey(itemKey), quantity)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

// GetStocks returns the stock for each requested item key.
// Unknown keys map to 0 rather than being omitted, so callers can range the
// result without existence checks.
func GetStocks(ctx context.Context, db DBTX, itemKeys []string) (map[string]int64, error) {
	stocks := make(map[string]int64, len(itemKeys))
	if len(itemKeys) == 0 {
		return stocks, nil
	}

	args := make([]any, 0, len(itemKeys))
	for _, key := range itemKeys {
		key = NormalizeKey(key)
		stocks[key] = 0
		args = append(args, key)
	}

	query := `
		SELECT item_key, stock FROM inventory
		WHERE item_key IN (?` + strings.Repeat(", ?", len(args)-1) + `)
	`
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get stocks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var stock int64
		if err := rows.Scan(&key, &stock); err != nil {
			return nil, fmt.Errorf("get stocks: scan: %w", err)
		}
		stocks[key] = stock
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get stocks: iterate: %w", err)
	}

	return stocks, nil
}
