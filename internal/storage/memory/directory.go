package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeovahfialho/trading-backend/internal/domain"
)

var (
	_ domain.UserRegistry  = (*Users)(nil)
	_ domain.CatalogWriter = (*Catalog)(nil)
)

type Users struct {
	mu     sync.RWMutex
	users  map[int64]domain.User
	nextID int64
}

func NewUsers() *Users {
	return &Users{users: make(map[int64]domain.User)}
}

func (u *Users) Create(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, domain.ErrInvalidUsername
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.findByUsername(username); ok {
		return domain.User{}, fmt.Errorf("%w: %q", domain.ErrUsernameTaken, username)
	}

	u.nextID++
	user := domain.User{ID: u.nextID, Username: username, CreatedAt: time.Now().UTC()}
	u.users[user.ID] = user
	return user, nil
}

func (u *Users) ExistsByID(ctx context.Context, id int64) (bool, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	_, ok := u.users[id]
	return ok, nil
}

func (u *Users) FindUsernameByID(ctx context.Context, id int64) (string, bool, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[id]
	return user.Username, ok, nil
}

func (u *Users) FindByID(ctx context.Context, id int64) (domain.User, bool, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.users[id]
	return user, ok, nil
}

func (u *Users) FindByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.findByUsername(strings.TrimSpace(username))
	return user, ok, nil
}

func (u *Users) findByUsername(username string) (domain.User, bool) {
	for _, user := range u.users {
		if user.Username == username {
			return user, true
		}
	}
	return domain.User{}, false
}

// List returns users ordered by id.
func (u *Users) List(ctx context.Context) ([]domain.User, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	users := make([]domain.User, 0, len(u.users))
	for _, user := range u.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Delete never reuses the id.
func (u *Users) Delete(ctx context.Context, id int64) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[id]; !ok {
		return false, nil
	}
	delete(u.users, id)
	return true, nil
}

type Catalog struct {
	mu     sync.RWMutex
	stocks map[string]domain.Stock
}

func NewCatalog(stocks ...domain.Stock) *Catalog {
	c := &Catalog{stocks: make(map[string]domain.Stock)}
	for _, s := range stocks {
		s.Symbol = domain.NormalizeSymbol(s.Symbol)
		c.stocks[s.Symbol] = s
	}
	return c
}

func (c *Catalog) FindBySymbol(ctx context.Context, symbol string) (domain.Stock, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.stocks[domain.NormalizeSymbol(symbol)]
	return s, ok, nil
}

func (c *Catalog) ListAll(ctx context.Context) ([]domain.Stock, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stocks := make([]domain.Stock, 0, len(c.stocks))
	for _, s := range c.stocks {
		stocks = append(stocks, s)
	}
	sort.Slice(stocks, func(i, j int) bool { return stocks[i].Symbol < stocks[j].Symbol })
	return stocks, nil
}

func (c *Catalog) Count(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.stocks)), nil
}

func (c *Catalog) Upsert(ctx context.Context, stocks []domain.Stock) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range stocks {
		s.Symbol = domain.NormalizeSymbol(s.Symbol)
		c.stocks[s.Symbol] = s
	}
	return int64(len(stocks)), nil
}

// Remove drops a symbol, which is how tests simulate a delisting.
func (c *Catalog) Remove(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stocks, domain.NormalizeSymbol(symbol))
}
