package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jeovahfialho/trading-backend/internal/domain"
)

var (
	_ domain.UserRegistry  = (*UserStore)(nil)
	_ domain.CatalogWriter = (*Catalog)(nil)
)

type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, domain.ErrInvalidUsername
	}

	start := time.Now()
	user := domain.User{Username: username}
	err := s.db.pool.QueryRow(ctx, `
		INSERT INTO users (username) VALUES ($1)
		RETURNING id, created_at
	`, username).Scan(&user.ID, &user.CreatedAt)
	observe("create_user", start, err)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.User{}, fmt.Errorf("%w: %q", domain.ErrUsernameTaken, username)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

const uniqueViolation = "23505"

func (s *UserStore) FindByID(ctx context.Context, id int64) (domain.User, bool, error) {
	return s.findOne(ctx, "find_user", `SELECT id, username, created_at FROM users WHERE id = $1`, id)
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	return s.findOne(ctx, "find_user_by_username",
		`SELECT id, username, created_at FROM users WHERE username = $1`, strings.TrimSpace(username))
}

func (s *UserStore) findOne(ctx context.Context, queryType, query string, arg interface{}) (domain.User, bool, error) {
	start := time.Now()
	var user domain.User
	err := s.db.pool.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		observe(queryType, start, nil)
		return domain.User{}, false, nil
	}
	observe(queryType, start, err)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("failed to find user: %w", err)
	}
	return user, true, nil
}

func (s *UserStore) List(ctx context.Context) ([]domain.User, error) {
	start := time.Now()
	rows, err := s.db.pool.Query(ctx, `SELECT id, username, created_at FROM users ORDER BY id`)
	if err != nil {
		observe("list_users", start, err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Username, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	observe("list_users", start, rows.Err())
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Delete removes the account only. Ledger rows stay, and so do positions,
// which no trade can touch again once the user is gone.
func (s *UserStore) Delete(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	tag, err := s.db.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	observe("delete_user", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *UserStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.db.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	observe("user_exists", start, err)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

func (s *UserStore) FindUsernameByID(ctx context.Context, id int64) (string, bool, error) {
	start := time.Now()
	var username string
	err := s.db.pool.QueryRow(ctx, `SELECT username FROM users WHERE id = $1`, id).Scan(&username)
	if errors.Is(err, pgx.ErrNoRows) {
		observe("find_username", start, nil)
		return "", false, nil
	}
	observe("find_username", start, err)
	if err != nil {
		return "", false, fmt.Errorf("failed to find username: %w", err)
	}
	return username, true, nil
}

type Catalog struct {
	db *DB
}

func NewCatalog(db *DB) *Catalog {
	return &Catalog{db: db}
}

const stockColumns = `symbol, company_name, current_price, change_amount, change_percentage`

func (c *Catalog) FindBySymbol(ctx context.Context, symbol string) (domain.Stock, bool, error) {
	start := time.Now()
	var s domain.Stock
	err := c.db.pool.QueryRow(ctx, `
		SELECT `+stockColumns+` FROM stocks WHERE symbol = $1
	`, domain.NormalizeSymbol(symbol)).Scan(
		&s.Symbol, &s.CompanyName, &s.CurrentPrice, &s.ChangeAmount, &s.ChangePercentage)

	if errors.Is(err, pgx.ErrNoRows) {
		observe("find_stock", start, nil)
		return domain.Stock{}, false, nil
	}
	observe("find_stock", start, err)
	if err != nil {
		return domain.Stock{}, false, fmt.Errorf("failed to find stock: %w", err)
	}
	return s, true, nil
}

func (c *Catalog) ListAll(ctx context.Context) ([]domain.Stock, error) {
	start := time.Now()
	rows, err := c.db.pool.Query(ctx, `SELECT `+stockColumns+` FROM stocks ORDER BY symbol`)
	if err != nil {
		observe("list_stocks", start, err)
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	defer rows.Close()

	stocks := make([]domain.Stock, 0)
	for rows.Next() {
		var s domain.Stock
		if err := rows.Scan(&s.Symbol, &s.CompanyName, &s.CurrentPrice, &s.ChangeAmount, &s.ChangePercentage); err != nil {
			observe("list_stocks", start, err)
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}

	err = rows.Err()
	observe("list_stocks", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate stocks: %w", err)
	}
	return stocks, nil
}

func (c *Catalog) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	var count int64
	err := c.db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stocks`).Scan(&count)
	observe("count_stocks", start, err)
	if err != nil {
		return 0, fmt.Errorf("failed to count stocks: %w", err)
	}
	return count, nil
}

// Upsert copies the batch into a staging table and merges it into stocks.
// Later entries for the same symbol win.
func (c *Catalog) Upsert(ctx context.Context, stocks []domain.Stock) (int64, error) {
	if len(stocks) == 0 {
		return 0, nil
	}

	start := time.Now()
	count, err := c.upsert(ctx, dedupeStocks(stocks))
	observe("upsert_stocks", start, err)
	return count, err
}

func (c *Catalog) upsert(ctx context.Context, stocks []domain.Stock) (int64, error) {
	tx, err := c.db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE stocks_staging (LIKE stocks INCLUDING DEFAULTS) ON COMMIT DROP
	`); err != nil {
		return 0, fmt.Errorf("failed to create staging table: %w", err)
	}

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{"stocks_staging"},
		[]string{"symbol", "company_name", "current_price", "change_amount", "change_percentage"},
		pgx.CopyFromSlice(len(stocks), func(i int) ([]interface{}, error) {
			s := stocks[i]
			return []interface{}{s.Symbol, s.CompanyName, s.CurrentPrice, s.ChangeAmount, s.ChangePercentage}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to copy stocks: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO stocks (`+stockColumns+`)
		SELECT `+stockColumns+` FROM stocks_staging
		ON CONFLICT (symbol) DO UPDATE SET
			company_name      = EXCLUDED.company_name,
			current_price     = EXCLUDED.current_price,
			change_amount     = EXCLUDED.change_amount,
			change_percentage = EXCLUDED.change_percentage
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to merge stocks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit stocks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func dedupeStocks(stocks []domain.Stock) []domain.Stock {
	index := make(map[string]int, len(stocks))
	out := make([]domain.Stock, 0, len(stocks))
	for _, s := range stocks {
		s.Symbol = domain.NormalizeSymbol(s.Symbol)
		if i, ok := index[s.Symbol]; ok {
			out[i] = s
			continue
		}
		index[s.Symbol] = len(out)
		out = append(out, s)
	}
	return out
}
