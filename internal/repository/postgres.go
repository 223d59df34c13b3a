package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"github.com/alxsaunders/futuremove-shop/internal/domain"
)

const pgUniqueViolation = "23505"

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("cannot ping db: %w", err)
	}
	return &PostgresRepo{db: db}, nil
}

// NewPostgresRepoWithDB wraps an existing handle; used by tests.
func NewPostgresRepoWithDB(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// EnsureAccount guarantees a users row with future_coins >= minBalance. The
// single upsert keeps concurrent first-time calls from failing on the
// primary key: the loser of the insert race falls through to the update,
// which only ever raises the balance.
func (r *PostgresRepo) EnsureAccount(ctx context.Context, userID string, minBalance int) error {
	query := `INSERT INTO users (id, future_coins) VALUES ($1, $2)
	          ON CONFLICT (id) DO UPDATE
	          SET future_coins = GREATEST(users.future_coins, EXCLUDED.future_coins);`
	if _, err := r.db.ExecContext(ctx, query, userID, minBalance); err != nil {
		return errors.Wrap(err, "repo: EnsureAccount")
	}
	return nil
}

func (r *PostgresRepo) GetBalance(ctx context.Context, userID string) (int, error) {
	query := `SELECT future_coins FROM users WHERE id = $1;`
	var coins int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&coins); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errors.Wrap(err, "repo: GetBalance")
	}
	return coins, nil
}

func (r *PostgresRepo) ListActiveItems(ctx context.Context) ([]domain.Item, error) {
	query := `SELECT id, name, description, category, price, is_active, exclusive
	          FROM items
	          WHERE is_active
	          ORDER BY category, price;`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "repo: ListActiveItems")
	}
	defer rows.Close()

	var res []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Category, &it.Price, &it.IsActive, &it.Exclusive); err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func (r *PostgresRepo) GetItem(ctx context.Context, itemID int) (*domain.Item, error) {
	query := `SELECT id, name, description, category, price, is_active, exclusive
	          FROM items WHERE id = $1;`
	it := &domain.Item{}
	err := r.db.QueryRowContext(ctx, query, itemID).
		Scan(&it.ID, &it.Name, &it.Description, &it.Category, &it.Price, &it.IsActive, &it.Exclusive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "repo: GetItem")
	}
	return it, nil
}

func (r *PostgresRepo) ListOwnedItems(ctx context.Context, userID string) ([]domain.OwnedItem, error) {
	query := `SELECT i.id, i.name, i.description, i.category, i.price, i.is_active, i.exclusive,
	                 ui.equipped, ui.acquired_at
	          FROM user_items ui
	          JOIN items i ON i.id = ui.item_id
	          WHERE ui.user_id = $1
	          ORDER BY ui.equipped DESC, i.category, i.price;`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "repo: ListOwnedItems")
	}
	defer rows.Close()

	var res []domain.OwnedItem
	for rows.Next() {
		var oi domain.OwnedItem
		if err := rows.Scan(&oi.ID, &oi.Name, &oi.Description, &oi.Category, &oi.Price, &oi.IsActive, &oi.Exclusive,
			&oi.Equipped, &oi.AcquiredAt); err != nil {
			return nil, err
		}
		res = append(res, oi)
	}
	return res, rows.Err()
}

// Purchase debits the price and grants ownership in one transaction. The
// SELECT ... FOR UPDATE on the user row is the serialization point: a
// concurrent purchase by the same user waits here and then re-reads the
// debited balance, so two purchases can never spend the same coins.
func (r *PostgresRepo) Purchase(ctx context.Context, userID string, itemID int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "repo: Purchase begin")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, future_coins) VALUES ($1, 0) ON CONFLICT (id) DO NOTHING;`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "repo: Purchase ensure user")
	}

	var balance int
	err = tx.QueryRowContext(ctx,
		`SELECT future_coins FROM users WHERE id = $1 FOR UPDATE;`, userID).Scan(&balance)
	if err != nil {
		return 0, errors.Wrap(err, "repo: Purchase lock user")
	}

	var owned bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_items WHERE user_id = $1 AND item_id = $2);`,
		userID, itemID).Scan(&owned)
	if err != nil {
		return 0, errors.Wrap(err, "repo: Purchase ownership check")
	}
	if owned {
		return 0, domain.ErrAlreadyOwned
	}

	var price int
	var active bool
	err = tx.QueryRowContext(ctx,
		`SELECT price, is_active FROM items WHERE id = $1;`, itemID).Scan(&price, &active)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, domain.ErrItemNotFound
		}
		return 0, errors.Wrap(err, "repo: Purchase item lookup")
	}
	if !active {
		return 0, domain.ErrItemNotFound
	}

	if balance < price {
		return 0, domain.ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET future_coins = future_coins - $1 WHERE id = $2;`, price, userID)
	if err != nil {
		return 0, errors.Wrap(err, "repo: Purchase debit")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_items (user_id, item_id, equipped) VALUES ($1, $2, FALSE);`, userID, itemID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, domain.ErrAlreadyOwned
		}
		return 0, errors.Wrap(err, "repo: Purchase grant")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "repo: Purchase commit")
	}
	return balance - price, nil
}

// ToggleEquip flips the equipped flag of an owned item. When turning an item
// on in an exclusive category it first clears every other equipped row of
// that user in the same category, inside the same transaction, so the
// exclusivity invariant holds at commit.
func (r *PostgresRepo) ToggleEquip(ctx context.Context, userID string, itemID int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "repo: ToggleEquip begin")
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the user row so concurrent toggles in the same category serialize.
	var coins int
	err = tx.QueryRowContext(ctx,
		`SELECT future_coins FROM users WHERE id = $1 FOR UPDATE;`, userID).Scan(&coins)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, domain.ErrNotOwned
		}
		return false, errors.Wrap(err, "repo: ToggleEquip lock user")
	}

	var equipped bool
	err = tx.QueryRowContext(ctx,
		`SELECT equipped FROM user_items WHERE user_id = $1 AND item_id = $2;`,
		userID, itemID).Scan(&equipped)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, domain.ErrNotOwned
		}
		return false, errors.Wrap(err, "repo: ToggleEquip ownership check")
	}

	var category string
	var exclusive bool
	err = tx.QueryRowContext(ctx,
		`SELECT category, exclusive FROM items WHERE id = $1;`, itemID).Scan(&category, &exclusive)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, domain.ErrItemNotFound
		}
		return false, errors.Wrap(err, "repo: ToggleEquip item lookup")
	}

	next := !equipped
	if next && exclusive {
		_, err = tx.ExecContext(ctx,
			`UPDATE user_items SET equipped = FALSE
			 WHERE user_id = $1 AND item_id <> $2 AND equipped
			   AND item_id IN (SELECT id FROM items WHERE category = $3);`,
			userID, itemID, category)
		if err != nil {
			return false, errors.Wrap(err, "repo: ToggleEquip sweep")
		}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE user_items SET equipped = $1 WHERE user_id = $2 AND item_id = $3;`,
		next, userID, itemID)
	if err != nil {
		return false, errors.Wrap(err, "repo: ToggleEquip update")
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "repo: ToggleEquip commit")
	}
	return next, nil
}

// AdjustBalance applies delta under the same user-row lock as Purchase. A
// negative delta that would take the balance below zero is rejected.
func (r *PostgresRepo) AdjustBalance(ctx context.Context, userID string, delta int) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "repo: AdjustBalance begin")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, future_coins) VALUES ($1, 0) ON CONFLICT (id) DO NOTHING;`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "repo: AdjustBalance ensure user")
	}

	var balance int
	err = tx.QueryRowContext(ctx,
		`SELECT future_coins FROM users WHERE id = $1 FOR UPDATE;`, userID).Scan(&balance)
	if err != nil {
		return 0, errors.Wrap(err, "repo: AdjustBalance lock user")
	}

	next := balance + delta
	if next < 0 {
		return 0, domain.ErrInsufficientFunds
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET future_coins = $1 WHERE id = $2;`, next, userID)
	if err != nil {
		return 0, errors.Wrap(err, "repo: AdjustBalance update")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "repo: AdjustBalance commit")
	}
	return next, nil
}

// SeedCatalog inserts the default items when the catalog is empty. Safe to
// run on every boot.
func (r *PostgresRepo) SeedCatalog(ctx context.Context, items []domain.Item) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "repo: SeedCatalog begin")
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items;`).Scan(&count); err != nil {
		return errors.Wrap(err, "repo: SeedCatalog count")
	}
	if count > 0 {
		return tx.Commit()
	}

	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (name, description, category, price, is_active, exclusive)
			 VALUES ($1, $2, $3, $4, $5, $6);`,
			it.Name, it.Description, it.Category, it.Price, it.IsActive, it.Exclusive)
		if err != nil {
			return errors.Wrap(err, "repo: SeedCatalog insert")
		}
	}
	return tx.Commit()
}
