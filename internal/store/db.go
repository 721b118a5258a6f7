package store

import (
	"context"
	"database/sql"
)

// Stores take the narrowest capability they need, so the same method works
// against *sqlx.DB and *sqlx.Tx. The ledger service passes the transaction in
// for anything that must happen under the account row lock.

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

type Tx interface {
	Execer
	Getter
}
