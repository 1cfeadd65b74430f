// FilePath: internal/repository/sqlstore/sqlstore.baserepo.go
package sqlstore

import (
	"context"
	"database/sql"

	"github.com/sauqing9/api-sitras/internal/database"
	"github.com/sauqing9/api-sitras/internal/errors"
)

type SQLBaseRepo struct {
	db database.DB
}

func (r *SQLBaseRepo) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := r.db.GetDB().ExecContext(ctx, r.db.GetDB().Rebind(query), args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to execute query", err)
	}
	return result, nil
}

// execAffected runs a statement and returns the number of affected rows
func (r *SQLBaseRepo) execAffected(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}
	return rows, nil
}

func (r *SQLBaseRepo) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return errors.NewDatabaseError("failed to ping database", err)
	}
	return nil
}

func (r *SQLBaseRepo) Close() error {
	if err := r.db.Close(); err != nil {
		return errors.NewDatabaseError("failed to close database", err)
	}
	return nil
}
