package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
}

type Transaction struct {
	ID          int64
	UserID      int64
	TxType      string
	AmountCents int64
	Category    string
	TxDate      string
	Description string
}

const createUser = `
INSERT INTO users (name, email, password_hash)
VALUES (?, ?, ?)
RETURNING id, name, email, password_hash
`

type CreateUserParams struct {
	Name         string
	Email        string
	PasswordHash string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.Name, arg.Email, arg.PasswordHash)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.PasswordHash)
	return i, err
}

const getUserByEmail = `
SELECT id, name, email, password_hash
FROM users
WHERE email = ?
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByEmail, email)
	var i User
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.PasswordHash)
	return i, err
}

const createTransaction = `
INSERT INTO transactions (user_id, tx_type, amount_cents, category, tx_date, description)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, user_id, tx_type, amount_cents, category, tx_date, description
`

type CreateTransactionParams struct {
	UserID      int64
	TxType      string
	AmountCents int64
	Category    string
	TxDate      string
	Description string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.UserID,
		arg.TxType,
		arg.AmountCents,
		arg.Category,
		arg.TxDate,
		arg.Description,
	)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TxType,
		&i.AmountCents,
		&i.Category,
		&i.TxDate,
		&i.Description,
	)
	return i, err
}

const getTransaction = `
SELECT id, user_id, tx_type, amount_cents, category, tx_date, description
FROM transactions
WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TxType,
		&i.AmountCents,
		&i.Category,
		&i.TxDate,
		&i.Description,
	)
	return i, err
}

const listTransactionsByUser = `
SELECT id, user_id, tx_type, amount_cents, category, tx_date, description
FROM transactions
WHERE user_id = ?
ORDER BY id
`

func (q *Queries) ListTransactionsByUser(ctx context.Context, userID int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.TxType,
			&i.AmountCents,
			&i.Category,
			&i.TxDate,
			&i.Description,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countTransactionsByUser = `
SELECT COUNT(*) FROM transactions WHERE user_id = ?
`

func (q *Queries) CountTransactionsByUser(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTransactionsByUser, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
