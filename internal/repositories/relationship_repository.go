package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/friendcards/backend/internal/db"
	"github.com/friendcards/backend/internal/models"
	"github.com/friendcards/backend/internal/relationships"
)

// PostgresRelationshipStore persists relationship records in PostgreSQL.
type PostgresRelationshipStore struct {
	pool db.Pool
}

// NewPostgresRelationshipStore constructs a relationship store backed by PostgreSQL.
func NewPostgresRelationshipStore(pool db.Pool) *PostgresRelationshipStore {
	return &PostgresRelationshipStore{pool: pool}
}

const relationshipColumns = `id, sender_id, receiver_id, status, created_at, updated_at`

func scanRelationship(row pgx.Row) (models.Relationship, error) {
	var (
		rel    models.Relationship
		status string
	)
	if err := row.Scan(&rel.ID, &rel.SenderID, &rel.ReceiverID, &status, &rel.CreatedAt, &rel.UpdatedAt); err != nil {
		return models.Relationship{}, err
	}
	rel.Status = models.RelationshipStatus(status)
	rel.CreatedAt = rel.CreatedAt.UTC()
	rel.UpdatedAt = rel.UpdatedAt.UTC()
	return rel, nil
}

func (s *PostgresRelationshipStore) queryOne(ctx context.Context, op, query string, args ...any) (models.Relationship, error) {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return models.Relationship{}, err
	}
	defer conn.Release()

	rel, err := scanRelationship(conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Relationship{}, ErrNotFound
		}
		return models.Relationship{}, fmt.Errorf("%s: %w", op, err)
	}
	return rel, nil
}

func (s *PostgresRelationshipStore) queryMany(ctx context.Context, op, query string, args ...any) ([]models.Relationship, error) {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []models.Relationship{}
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return out, nil
}

// FindByID loads a record by its identifier.
func (s *PostgresRelationshipStore) FindByID(ctx context.Context, id string) (models.Relationship, error) {
	return s.queryOne(ctx, "select relationship", `
        SELECT `+relationshipColumns+`
        FROM relationships
        WHERE id = $1
    `, id)
}

// FindByOrderedPair loads the record sent by senderID to receiverID.
func (s *PostgresRelationshipStore) FindByOrderedPair(ctx context.Context, senderID, receiverID string) (models.Relationship, error) {
	return s.queryOne(ctx, "select relationship by pair", `
        SELECT `+relationshipColumns+`
        FROM relationships
        WHERE sender_id = $1 AND receiver_id = $2
    `, senderID, receiverID)
}

// FindAcceptedBetween loads an accepted record linking a and b, preferring a's outbound one.
func (s *PostgresRelationshipStore) FindAcceptedBetween(ctx context.Context, a, b string) (models.Relationship, error) {
	return s.queryOne(ctx, "select accepted relationship", `
        SELECT `+relationshipColumns+`
        FROM relationships
        WHERE status = 'accepted'
          AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
        ORDER BY (sender_id = $1) DESC
        LIMIT 1
    `, a, b)
}

// CountAccepted counts distinct counterparties joined to publicID by an accepted record.
func (s *PostgresRelationshipStore) CountAccepted(ctx context.Context, publicID string) (int, error) {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var count int
	err = conn.QueryRow(ctx, `
        SELECT COUNT(DISTINCT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END)
        FROM relationships
        WHERE status = 'accepted' AND (sender_id = $1 OR receiver_id = $1)
    `, publicID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count accepted relationships: %w", err)
	}
	return count, nil
}

// ListAccepted lists accepted records where publicID plays role, newest first.
func (s *PostgresRelationshipStore) ListAccepted(ctx context.Context, publicID string, role relationships.Role) ([]models.Relationship, error) {
	column := "sender_id"
	if role == relationships.RoleReceiver {
		column = "receiver_id"
	}
	return s.queryMany(ctx, "list accepted relationships", `
        SELECT `+relationshipColumns+`
        FROM relationships
        WHERE `+column+` = $1 AND status = 'accepted'
        ORDER BY updated_at DESC, id ASC
    `, publicID)
}

// ListPending lists requests awaiting receiverID's answer, newest first.
func (s *PostgresRelationshipStore) ListPending(ctx context.Context, receiverID string) ([]models.Relationship, error) {
	return s.queryMany(ctx, "list pending relationships", `
        SELECT `+relationshipColumns+`
        FROM relationships
        WHERE receiver_id = $1 AND status = 'pending'
        ORDER BY updated_at DESC, id ASC
    `, receiverID)
}

// Insert stores a new record. The (sender_id, receiver_id) unique constraint
// turns a concurrent duplicate into ErrConflict.
func (s *PostgresRelationshipStore) Insert(ctx context.Context, rel models.Relationship) error {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO relationships (id, sender_id, receiver_id, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, rel.ID, rel.SenderID, rel.ReceiverID, string(rel.Status), rel.CreatedAt.UTC(), rel.UpdatedAt.UTC())
	if err != nil {
		return classifyWriteError("insert relationship", err)
	}
	return nil
}

// UpdateStatus moves a record from one status to another in a single conditional write.
func (s *PostgresRelationshipStore) UpdateStatus(ctx context.Context, id string, from, to models.RelationshipStatus, at time.Time) error {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE relationships
        SET status = $3, updated_at = $4
        WHERE id = $1 AND status = $2
    `, id, string(from), string(to), at.UTC())
	if err != nil {
		return fmt.Errorf("update relationship status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM relationships WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check relationship: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

// Delete removes the record while it still holds the expected status.
func (s *PostgresRelationshipStore) Delete(ctx context.Context, id string, expected models.RelationshipStatus) error {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM relationships
        WHERE id = $1 AND status = $2
    `, id, string(expected))
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ relationships.Store = (*PostgresRelationshipStore)(nil)
