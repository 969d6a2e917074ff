package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists ledger transactions in PostgreSQL.
//
// Expected schema (transactions):
//
//	id uuid primary key, owner_id text, member_id text, wallet_id text,
//	tx_type text, channel text, status text, amount_msats bigint,
//	amount_fiat double precision, payment_tracker text, payload jsonb,
//	reference text, idempotency_key text, reviews jsonb, retry_count int,
//	wallet_config jsonb, state_changed_at timestamptz, timeout_at timestamptz,
//	created_at timestamptz, updated_at timestamptz
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const txColumns = `id, owner_id, member_id, wallet_id, tx_type, channel, status,
	amount_msats, amount_fiat, payment_tracker, payload, reference,
	idempotency_key, reviews, retry_count, wallet_config,
	state_changed_at, timeout_at, created_at, updated_at`

const insertTxSQL = `INSERT INTO transactions (` + txColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`

// Create appends a transaction row.
func (s *PostgresStore) Create(ctx context.Context, tx Transaction) error {
	args, err := insertArgs(tx)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, insertTxSQL, args...)
	return err
}

// CreateReserved appends a withdrawal row only if the wallet can afford it.
// The check and the insert share a per-(owner, wallet) advisory lock so the
// reservation is atomic with respect to concurrent withdrawals.
func (s *PostgresStore) CreateReserved(ctx context.Context, tx Transaction) error {
	args, err := insertArgs(tx)
	if err != nil {
		return err
	}

	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	lockKey := tx.OwnerID + ":" + tx.WalletID
	if _, err := dbtx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return err
	}

	var meta Meta
	if err := dbtx.QueryRow(ctx, metaSQL+` WHERE owner_id = $1 AND wallet_id = $2`, tx.OwnerID, tx.WalletID).
		Scan(&meta.TotalDepositsMsats, &meta.TotalWithdrawalsMsats, &meta.ReservedMsats); err != nil {
		return err
	}
	available := meta.TotalDepositsMsats - meta.TotalWithdrawalsMsats - meta.ReservedMsats
	if tx.AmountMsats > available {
		return ErrInsufficientFunds
	}

	if _, err := dbtx.Exec(ctx, insertTxSQL, args...); err != nil {
		return err
	}
	return dbtx.Commit(ctx)
}

// Get fetches a transaction by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, txID)
	return scanTx(row)
}

// Update rewrites a row in place.
func (s *PostgresStore) Update(ctx context.Context, tx Transaction) error {
	txID, err := uuid.Parse(tx.ID)
	if err != nil {
		return ErrNotFound
	}
	payload, reviews, walletCfg, err := encodeJSONFields(tx)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE transactions SET
		status = $2, amount_msats = $3, amount_fiat = $4, payment_tracker = $5,
		payload = $6, reference = $7, reviews = $8, retry_count = $9,
		wallet_config = $10, state_changed_at = $11, timeout_at = $12, updated_at = $13
		WHERE id = $1`,
		txID, tx.Status, tx.AmountMsats, tx.AmountFiat, tx.PaymentTracker,
		payload, tx.Reference, reviews, tx.RetryCount,
		walletCfg, tx.StateChangedAt.UTC(), tx.TimeoutAt, tx.UpdatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByTracker locates the row correlated to an external rail id.
func (s *PostgresStore) FindByTracker(ctx context.Context, tracker string) (Transaction, error) {
	if tracker == "" {
		return Transaction{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE payment_tracker = $1 ORDER BY created_at DESC LIMIT 1`, tracker)
	return scanTx(row)
}

// FindByIdempotencyKey locates an existing row for a client-supplied key.
func (s *PostgresStore) FindByIdempotencyKey(ctx context.Context, ownerID string, typ Type, key string) (Transaction, error) {
	if key == "" {
		return Transaction{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE owner_id = $1 AND tx_type = $2 AND idempotency_key = $3 LIMIT 1`, ownerID, typ, key)
	return scanTx(row)
}

// List returns a filtered page of transactions, newest first.
func (s *PostgresStore) List(ctx context.Context, f Filter) (Page, error) {
	where := make([]string, 0, 5)
	args := make([]any, 0, 5)
	add := func(col string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if f.OwnerID != "" {
		add("owner_id", f.OwnerID)
	}
	if f.MemberID != "" {
		add("member_id", f.MemberID)
	}
	if f.WalletID != "" {
		add("wallet_id", f.WalletID)
	}
	if f.Type != "" {
		add("tx_type", f.Type)
	}
	if f.Status != "" {
		add("status", f.Status)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	size := f.Size
	if size <= 0 {
		size = defaultPageSize
	}
	page := f.Page
	if page < 0 {
		page = 0
	}

	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() FROM transactions%s
		ORDER BY created_at DESC LIMIT %d OFFSET %d`, txColumns, clause, size, page*size)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	result := Page{PageIndex: page, Size: size, Transactions: []Transaction{}}
	for rows.Next() {
		tx, total, err := scanTxWithTotal(rows)
		if err != nil {
			return Page{}, err
		}
		result.Total = total
		result.Transactions = append(result.Transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	if result.Total == 0 && page > 0 {
		// the offset may have run past the last row; fetch the count alone
		if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`+clause, args...).Scan(&result.Total); err != nil {
			return Page{}, err
		}
	}
	result.Pages = (result.Total + size - 1) / size
	return result, nil
}

const metaSQL = `SELECT
	COALESCE(SUM(amount_msats) FILTER (WHERE tx_type = 'deposit' AND status IN ('complete','manual_review')), 0),
	COALESCE(SUM(amount_msats) FILTER (WHERE tx_type = 'withdraw' AND status = 'complete'), 0),
	COALESCE(SUM(amount_msats) FILTER (WHERE tx_type = 'withdraw' AND status IN ('pending','approved','processing')), 0)
	FROM transactions`

// WalletMeta aggregates the three balance terms for one wallet.
func (s *PostgresStore) WalletMeta(ctx context.Context, ownerID, walletID string) (Meta, error) {
	return s.meta(ctx, metaSQL+` WHERE owner_id = $1 AND wallet_id = $2`, ownerID, walletID)
}

// GroupMeta aggregates across every member transaction of a chama.
func (s *PostgresStore) GroupMeta(ctx context.Context, chamaID string) (Meta, error) {
	return s.meta(ctx, metaSQL+` WHERE owner_id = $1`, chamaID)
}

// MemberMeta aggregates one member's share of a chama ledger.
func (s *PostgresStore) MemberMeta(ctx context.Context, chamaID, memberID string) (Meta, error) {
	return s.meta(ctx, metaSQL+` WHERE owner_id = $1 AND member_id = $2`, chamaID, memberID)
}

func (s *PostgresStore) meta(ctx context.Context, query string, args ...any) (Meta, error) {
	var meta Meta
	if err := s.db.QueryRow(ctx, query, args...).
		Scan(&meta.TotalDepositsMsats, &meta.TotalWithdrawalsMsats, &meta.ReservedMsats); err != nil {
		return Meta{}, err
	}
	meta.CurrentBalanceMsats = meta.TotalDepositsMsats - meta.TotalWithdrawalsMsats - meta.ReservedMsats
	return meta, nil
}

// FindWalletConfig fetches the live wallet_creation row for a wallet.
func (s *PostgresStore) FindWalletConfig(ctx context.Context, ownerID, walletID string) (Transaction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE tx_type = 'wallet_creation' AND owner_id = $1 AND wallet_id = $2
		ORDER BY created_at DESC LIMIT 1`, ownerID, walletID)
	return scanTx(row)
}

func insertArgs(tx Transaction) ([]any, error) {
	txID, err := uuid.Parse(tx.ID)
	if err != nil {
		return nil, fmt.Errorf("transaction id: %w", err)
	}
	payload, reviews, walletCfg, err := encodeJSONFields(tx)
	if err != nil {
		return nil, err
	}
	return []any{
		txID, tx.OwnerID, tx.MemberID, tx.WalletID, tx.Type, tx.Channel, tx.Status,
		tx.AmountMsats, tx.AmountFiat, tx.PaymentTracker, payload, tx.Reference,
		tx.IdempotencyKey, reviews, tx.RetryCount, walletCfg,
		tx.StateChangedAt.UTC(), tx.TimeoutAt, tx.CreatedAt.UTC(), tx.UpdatedAt.UTC(),
	}, nil
}

func encodeJSONFields(tx Transaction) (payload, reviews, walletCfg []byte, err error) {
	if tx.Payload != nil {
		if payload, err = json.Marshal(tx.Payload); err != nil {
			return nil, nil, nil, err
		}
	}
	if len(tx.Reviews) > 0 {
		if reviews, err = json.Marshal(tx.Reviews); err != nil {
			return nil, nil, nil, err
		}
	}
	if tx.Wallet != nil {
		if walletCfg, err = json.Marshal(tx.Wallet); err != nil {
			return nil, nil, nil, err
		}
	}
	return payload, reviews, walletCfg, nil
}

func scanTx(row pgx.Row) (Transaction, error) {
	tx, _, err := scanInto(row, false)
	return tx, err
}

func scanTxWithTotal(row pgx.Row) (Transaction, int, error) {
	return scanInto(row, true)
}

func scanInto(row pgx.Row, withTotal bool) (Transaction, int, error) {
	var (
		tx        Transaction
		txID      uuid.UUID
		payload   []byte
		reviews   []byte
		walletCfg []byte
		stateAt   time.Time
		createdAt time.Time
		updatedAt time.Time
		total     int
	)
	dest := []any{
		&txID, &tx.OwnerID, &tx.MemberID, &tx.WalletID, &tx.Type, &tx.Channel, &tx.Status,
		&tx.AmountMsats, &tx.AmountFiat, &tx.PaymentTracker, &payload, &tx.Reference,
		&tx.IdempotencyKey, &reviews, &tx.RetryCount, &walletCfg,
		&stateAt, &tx.TimeoutAt, &createdAt, &updatedAt,
	}
	if withTotal {
		dest = append(dest, &total)
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, 0, ErrNotFound
		}
		return Transaction{}, 0, err
	}
	tx.ID = txID.String()
	tx.StateChangedAt = stateAt.UTC()
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	if len(payload) > 0 {
		tx.Payload = &PaymentPayload{}
		if err := json.Unmarshal(payload, tx.Payload); err != nil {
			return Transaction{}, 0, err
		}
	}
	if len(reviews) > 0 {
		if err := json.Unmarshal(reviews, &tx.Reviews); err != nil {
			return Transaction{}, 0, err
		}
	}
	if len(walletCfg) > 0 {
		tx.Wallet = &WalletConfig{}
		if err := json.Unmarshal(walletCfg, tx.Wallet); err != nil {
			return Transaction{}, 0, err
		}
	}
	return tx, total, nil
}
