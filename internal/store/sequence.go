package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/koloa-ledger/internal/ledger"
)

// nextOrderNumber allocates the next ORD-<year>-<seq> number from the
// order_sequences counter row. A year without a row is seeded from the
// highest number already stored for that year.
func nextOrderNumber(ctx context.Context, tx *sql.Tx, year int) (string, error) {
	seed, err := seedSequence(ctx, tx, year)
	if err != nil {
		return "", err
	}

	var seq int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO order_sequences (year, last_value)
		 VALUES ($1, $2)
		 ON CONFLICT (year) DO UPDATE
		 SET last_value = GREATEST(order_sequences.last_value + 1, EXCLUDED.last_value)
		 RETURNING last_value`,
		year, seed).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("allocate order sequence: %w", err)
	}

	return ledger.FormatOrderNumber(year, seq), nil
}

// seedSequence is the value a brand-new counter row for year starts at.
// Orders stored before the counter existed are honoured.
func seedSequence(ctx context.Context, tx *sql.Tx, year int) (int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT order_number
		 FROM orders
		 WHERE order_number LIKE $1 || '%'
		   AND NOT EXISTS (SELECT 1 FROM order_sequences WHERE year = $2)`,
		ledger.OrderNumberPrefix(year), year)
	if err != nil {
		return 0, fmt.Errorf("scan existing order numbers: %w", err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return 0, fmt.Errorf("scan order number: %w", err)
		}
		numbers = append(numbers, number)
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("rows error: %w", err)
	}

	return ledger.NextSequence(numbers, year), nil
}
