package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/friendcards/backend/internal/db"
	"github.com/friendcards/backend/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = models.ErrNotFound
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = models.ErrConflict
	// ErrUnavailable indicates the database could not be reached.
	ErrUnavailable = models.ErrUnavailable
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func acquire(ctx context.Context, pool db.Pool) (*pgxpool.Conn, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w: %w", ErrUnavailable, err)
	}
	return conn, nil
}

// classifyWriteError maps constraint violations onto the shared taxonomy.
func classifyWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
