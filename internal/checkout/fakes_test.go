package checkout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

// memDB stands in for Postgres: it implements Store, order.Repository and
// CartReader over maps, and InTx discards every write when fn fails.
type memDB struct {
	mu     sync.Mutex
	lines  map[string][]cart.Line
	orders map[string]order.Order

	insertErr error
	clearErr  error
	commits   int
	// afterLock runs inside the transaction once the cart lines are locked.
	afterLock func(tx *memTx)
	// racers are statuses written by a concurrent updater, one per
	// UpdateStatus call, each making that call lose its compare-and-set.
	racers []order.Status
	// lostRaces fails that many UpdateStatus calls without changing the order.
	lostRaces int
}

func newMemDB() *memDB {
	return &memDB{lines: map[string][]cart.Line{}, orders: map[string]order.Order{}}
}

func (db *memDB) addLine(userID, productID string, qty int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.lines[userID] = append(db.lines[userID], cart.Line{
		ID: uuid.NewString(), UserID: userID, ProductID: productID, Quantity: qty, CreatedAt: time.Now(),
	})
}

func (db *memDB) orderCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.orders)
}

func (db *memDB) InTx(ctx context.Context, fn func(tx Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx := &memTx{db: db, lines: map[string][]cart.Line{}, orders: map[string]order.Order{}}
	for k, v := range db.lines {
		tx.lines[k] = append([]cart.Line(nil), v...)
	}
	for k, v := range db.orders {
		tx.orders[k] = v
	}

	if err := fn(tx); err != nil {
		return err
	}
	db.lines = tx.lines
	db.orders = tx.orders
	db.commits++
	return nil
}

type memTx struct {
	db     *memDB
	lines  map[string][]cart.Line
	orders map[string]order.Order
}

func (tx *memTx) LockCartLines(_ context.Context, userID string) ([]cart.Line, error) {
	locked := append([]cart.Line{}, tx.lines[userID]...)
	if tx.db.afterLock != nil {
		tx.db.afterLock(tx)
	}
	return locked, nil
}

func (tx *memTx) InsertOrder(_ context.Context, o *order.Order) error {
	if tx.db.insertErr != nil {
		return tx.db.insertErr
	}
	for _, existing := range tx.orders {
		if o.CheckoutKey != "" && existing.UserID == o.UserID && existing.CheckoutKey == o.CheckoutKey {
			return order.ErrDuplicateCheckout
		}
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	for i := range o.Lines {
		o.Lines[i].ID = uuid.NewString()
		o.Lines[i].Position = i + 1
	}
	stored := *o
	stored.Lines = append([]order.Line(nil), o.Lines...)
	tx.orders[o.ID] = stored
	return nil
}

func (tx *memTx) ClearCart(_ context.Context, userID string, lineIDs []string) (int64, error) {
	if tx.db.clearErr != nil {
		return 0, tx.db.clearErr
	}
	drop := map[string]bool{}
	for _, id := range lineIDs {
		drop[id] = true
	}
	var kept []cart.Line
	for _, l := range tx.lines[userID] {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	n := int64(len(tx.lines[userID]) - len(kept))
	if len(kept) == 0 {
		delete(tx.lines, userID)
	} else {
		tx.lines[userID] = kept
	}
	return n, nil
}

func (db *memDB) Lines(_ context.Context, userID string) ([]cart.Line, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]cart.Line{}, db.lines[userID]...), nil
}

func (db *memDB) Insert(context.Context, *order.Order) error {
	return errors.New("insert outside checkout transaction")
}

func (db *memDB) Get(_ context.Context, orderID string) (order.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	o, ok := db.orders[orderID]
	if !ok {
		return order.Order{}, apperr.New(apperr.KindNotFound, "order %s not found", orderID)
	}
	return o, nil
}

func (db *memDB) FindByCheckoutKey(_ context.Context, userID, key string) (order.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, o := range db.orders {
		if o.UserID == userID && o.CheckoutKey == key {
			return o, nil
		}
	}
	return order.Order{}, apperr.ErrNotFound
}

func (db *memDB) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := []order.Order{}
	for _, o := range db.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (db *memDB) UpdateStatus(_ context.Context, orderID string, from, to order.Status) (order.Order, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	o, ok := db.orders[orderID]
	if !ok {
		return order.Order{}, apperr.ErrNotFound
	}
	if db.lostRaces > 0 {
		db.lostRaces--
		return order.Order{}, order.ErrStatusChanged
	}
	if len(db.racers) > 0 {
		o.Status, db.racers = db.racers[0], db.racers[1:]
		db.orders[orderID] = o
	}
	if o.Status != from {
		return order.Order{}, order.ErrStatusChanged
	}
	o.Status = to
	db.orders[orderID] = o
	return o, nil
}

type memCatalog struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	err      error
}

func newMemCatalog(products ...catalog.Product) *memCatalog {
	c := &memCatalog{products: map[string]catalog.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *memCatalog) Get(_ context.Context, id string) (catalog.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return catalog.Product{}, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return catalog.Product{}, apperr.ErrNotFound
	}
	return p, nil
}

func (c *memCatalog) set(p catalog.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *memCatalog) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

type recordingEvents struct {
	mu      sync.Mutex
	created []order.Order
	err     error
}

func (e *recordingEvents) OrderCreated(_ context.Context, o order.Order) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.created = append(e.created, o)
	return nil
}
