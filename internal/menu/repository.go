package menu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a menu or item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when the acting user does not own the menu.
	ErrPermissionDenied = errors.New("permission denied")
)

// Repository persists menus and their items.
type Repository interface {
	Create(ctx context.Context, m Menu) error
	Get(ctx context.Context, id string) (Menu, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Menu, error)
	Update(ctx context.Context, m Menu) error
	// Delete removes the menu together with all its items.
	Delete(ctx context.Context, id string) error

	// AddItems stores every item or none of them.
	AddItems(ctx context.Context, items []Item) error
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context, menuID string) ([]Item, error)
	UpdateItem(ctx context.Context, item Item) error
	DeleteItem(ctx context.Context, id string) error
}

// PostgresRepository stores menus in the menus and menu_items tables.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	menuColumns = `id, owner_id, title, description, available, qr_key, created_at`
	itemColumns = `id, menu_id, item, description, price, available, created_at`
)

// Create inserts a menu record.
func (r *PostgresRepository) Create(ctx context.Context, m Menu) error {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return err
	}
	ownerID, err := uuid.Parse(m.OwnerID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO menus (`+menuColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, ownerID, m.Title, m.Description, m.Available, m.QRKey, m.CreatedAt.UTC())
	return err
}

// Get fetches a menu by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Menu, error) {
	menuID, err := uuid.Parse(id)
	if err != nil {
		return Menu{}, ErrNotFound
	}
	return scanMenu(r.db.QueryRow(ctx, `SELECT `+menuColumns+` FROM menus WHERE id = $1`, menuID))
}

// ListByOwner returns the owner's menus, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]Menu, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+menuColumns+` FROM menus WHERE owner_id = $1 ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var menus []Menu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

// Update rewrites the mutable columns of a menu.
func (r *PostgresRepository) Update(ctx context.Context, m Menu) error {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE menus SET title = $2, description = $3, available = $4, qr_key = $5 WHERE id = $1`,
		id, m.Title, m.Description, m.Available, m.QRKey)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the menu and its items in one transaction.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	menuID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM menu_items WHERE menu_id = $1`, menuID); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM menus WHERE id = $1`, menuID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// AddItems inserts the batch in a single transaction.
func (r *PostgresRepository) AddItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	for _, it := range items {
		id, err := uuid.Parse(it.ID)
		if err != nil {
			return err
		}
		menuID, err := uuid.Parse(it.MenuID)
		if err != nil {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `INSERT INTO menu_items (`+itemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, menuID, it.Name, it.Description, it.Price, it.Available, it.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetItem fetches an item by id.
func (r *PostgresRepository) GetItem(ctx context.Context, id string) (Item, error) {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return Item{}, ErrNotFound
	}
	return scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM menu_items WHERE id = $1`, itemID))
}

// ListItems returns a menu's items in insertion order.
func (r *PostgresRepository) ListItems(ctx context.Context, menuID string) ([]Item, error) {
	id, err := uuid.Parse(menuID)
	if err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM menu_items WHERE menu_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateItem rewrites the mutable columns of an item.
func (r *PostgresRepository) UpdateItem(ctx context.Context, it Item) error {
	id, err := uuid.Parse(it.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE menu_items SET item = $2, description = $3, price = $4, available = $5 WHERE id = $1`,
		id, it.Name, it.Description, it.Price, it.Available)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteItem removes a single item.
func (r *PostgresRepository) DeleteItem(ctx context.Context, id string) error {
	itemID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, itemID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMenu(row pgx.Row) (Menu, error) {
	var (
		m         Menu
		id, owner uuid.UUID
		createdAt time.Time
	)
	if err := row.Scan(&id, &owner, &m.Title, &m.Description, &m.Available, &m.QRKey, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Menu{}, ErrNotFound
		}
		return Menu{}, err
	}
	m.ID = id.String()
	m.OwnerID = owner.String()
	m.CreatedAt = createdAt.UTC()
	return m, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		it         Item
		id, menuID uuid.UUID
		createdAt  time.Time
	)
	if err := row.Scan(&id, &menuID, &it.Name, &it.Description, &it.Price, &it.Available, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	it.ID = id.String()
	it.MenuID = menuID.String()
	it.CreatedAt = createdAt.UTC()
	return it, nil
}
