package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/techguru-shop/internal/apperr"
)

// PGStore keeps products and reservations in Postgres. Reserve is one
// conditional UPDATE, so two checkouts racing for the last unit cannot both
// win; Release and Commit only ever move a row out of RESERVED.
type PGStore struct{ DB *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

const productCols = `id, seller_id, name, description, price::text, quantity, category, created_at, updated_at`

// storeErr reports driver and connection failures as the store being
// unavailable. Typed errors and server-side SQL errors pass through.
func storeErr(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil, errors.As(err, &pgErr),
		errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrConflict), apperr.IsValidation(err):
		return err
	}
	if _, ok := apperr.AsInsufficientStock(err); ok {
		return err
	}
	return apperr.Unavailable("inventory-store", err)
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var price string
	if err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &price, &p.Quantity, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, apperr.ErrNotFound
		}
		return Product{}, storeErr(err)
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, fmt.Errorf("product %s price: %w", p.ID, err)
	}
	p.Price = d
	return p, nil
}

func (s *PGStore) CheckAvailability(ctx context.Context, productID string, quantity int) (bool, error) {
	var stock int
	err := s.DB.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, apperr.ErrNotFound
	}
	if err != nil {
		return false, storeErr(err)
	}
	return stock >= quantity, nil
}

func (s *PGStore) Reserve(ctx context.Context, orderID, productID string, quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, apperr.Invalid("quantity must be positive")
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Reservation{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var left int
	err = tx.QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = now()
		WHERE id = $1 AND quantity >= $2
		RETURNING quantity`, productID, quantity).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		var stock int
		if err := tx.QueryRow(ctx, `SELECT quantity FROM products WHERE id=$1`, productID).Scan(&stock); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Reservation{}, apperr.ErrNotFound
			}
			return Reservation{}, storeErr(err)
		}
		return Reservation{}, &apperr.InsufficientStockError{ProductID: productID, Available: stock}
	}
	if err != nil {
		return Reservation{}, storeErr(err)
	}

	r := Reservation{ID: uuid.NewString(), OrderID: orderID, ProductID: productID, Quantity: quantity, Status: ReservationReserved}
	if err := tx.QueryRow(ctx, `
		INSERT INTO reservations(id, order_id, product_id, qty, status)
		VALUES ($1, $2, $3, $4, 'RESERVED')
		RETURNING created_at`, r.ID, orderID, productID, quantity).Scan(&r.CreatedAt); err != nil {
		return Reservation{}, storeErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, storeErr(err)
	}
	return r, nil
}

func (s *PGStore) Release(ctx context.Context, r Reservation) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := releaseTx(ctx, tx, r.ID); err != nil {
		return storeErr(err)
	}
	return storeErr(tx.Commit(ctx))
}

// releaseTx credits stock back only if it wins the RESERVED -> RELEASED flip.
func releaseTx(ctx context.Context, tx pgx.Tx, id string) error {
	var pid string
	var qty int
	err := tx.QueryRow(ctx, `
		UPDATE reservations SET status='RELEASED', updated_at=now()
		WHERE id=$1 AND status='RESERVED'
		RETURNING product_id, qty`, id).Scan(&pid, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return storeErr(err)
	}
	_, err = tx.Exec(ctx, `UPDATE products SET quantity = quantity + $2, updated_at = now() WHERE id=$1`, pid, qty)
	return storeErr(err)
}

func (s *PGStore) Commit(ctx context.Context, r Reservation) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE reservations SET status='COMMITTED', updated_at=now()
		WHERE id=$1 AND status='RESERVED'`, r.ID)
	if err != nil {
		return storeErr(err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var status string
	err = s.DB.QueryRow(ctx, `SELECT status FROM reservations WHERE id=$1`, r.ID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return storeErr(err)
	}
	if ReservationStatus(status) == ReservationReleased {
		return apperr.Invalid("reservation %s already released", r.ID)
	}
	return nil
}

func (s *PGStore) Stale(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, status, created_at FROM reservations
		WHERE status='RESERVED' AND created_at < $1
		ORDER BY created_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Reservation, error) {
		var r Reservation
		err := row.Scan(&r.ID, &r.OrderID, &r.ProductID, &r.Quantity, &r.Status, &r.CreatedAt)
		return r, err
	})
	return out, storeErr(err)
}

func (s *PGStore) Create(ctx context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, storeErr(err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	row := s.DB.QueryRow(ctx, `
		INSERT INTO products(id, seller_id, name, description, price, quantity, category)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7)
		RETURNING `+productCols,
		p.ID, p.SellerID, p.Name, p.Description, p.Price.String(), p.Quantity, p.Category)
	out, err := scanProduct(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Product{}, apperr.ErrConflict
	}
	return out, storeErr(err)
}

func (s *PGStore) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
	return p, storeErr(err)
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]Product, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Query != "" {
		add("name ILIKE '%%' || $%d || '%%'", f.Query)
	}
	if f.Category != "" {
		add("lower(category) = lower($%d)", f.Category)
	}
	if f.SellerID != "" {
		add("seller_id = $%d", f.SellerID)
	}
	if f.MinPrice != nil {
		add("price >= $%d::numeric", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		add("price <= $%d::numeric", f.MaxPrice.String())
	}
	q := `SELECT ` + productCols + ` FROM products`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storeErr(err)
		}
		out = append(out, p)
	}
	return out, storeErr(rows.Err())
}

func (s *PGStore) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, storeErr(err)
	}
	cs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return cs, storeErr(err)
}

func (s *PGStore) Update(ctx context.Context, id string, u ProductUpdate) (Product, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Product{}, storeErr(err)
	}
	if err := u.apply(&p); err != nil {
		return Product{}, storeErr(err)
	}
	out, err := scanProduct(tx.QueryRow(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4::numeric, category=$5, updated_at=now()
		WHERE id=$1
		RETURNING `+productCols, id, p.Name, p.Description, p.Price.String(), p.Category))
	if err != nil {
		return Product{}, storeErr(err)
	}
	return out, storeErr(tx.Commit(ctx))
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return storeErr(err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *PGStore) Restock(ctx context.Context, id string, quantity int) (Product, error) {
	if quantity <= 0 {
		return Product{}, apperr.Invalid("restock quantity must be positive")
	}
	p, err := scanProduct(s.DB.QueryRow(ctx, `
		UPDATE products SET quantity = quantity + $2, updated_at = now()
		WHERE id=$1
		RETURNING `+productCols, id, quantity))
	return p, storeErr(err)
}
