package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/friendcards/backend/internal/cards"
	"github.com/friendcards/backend/internal/db"
	"github.com/friendcards/backend/internal/ranking"
)

// PostgresCardStore keeps one cached card row per profile.
type PostgresCardStore struct {
	pool db.Pool
}

// NewPostgresCardStore constructs a card store backed by PostgreSQL.
func NewPostgresCardStore(pool db.Pool) *PostgresCardStore {
	return &PostgresCardStore{pool: pool}
}

// Get loads the cached card for publicID.
func (s *PostgresCardStore) Get(ctx context.Context, publicID string) (cards.CardProfile, error) {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return cards.CardProfile{}, err
	}
	defer conn.Release()

	var (
		card cards.CardProfile
		rank int
		suit string
	)
	err = conn.QueryRow(ctx, `
        SELECT public_id, rank, suit, friends_count, computed_at
        FROM card_profiles
        WHERE public_id = $1
    `, publicID).Scan(&card.PublicID, &rank, &suit, &card.FriendsCount, &card.ComputedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cards.CardProfile{}, ErrNotFound
		}
		return cards.CardProfile{}, fmt.Errorf("select card: %w", err)
	}

	card.Rank = ranking.Rank(rank)
	card.Suit = ranking.Suit(suit)
	card.ComputedAt = card.ComputedAt.UTC()
	return card, nil
}

// Put upserts the card so a profile never holds more than one row.
func (s *PostgresCardStore) Put(ctx context.Context, card cards.CardProfile) error {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO card_profiles (public_id, rank, suit, friends_count, computed_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (public_id)
        DO UPDATE SET rank = EXCLUDED.rank, suit = EXCLUDED.suit,
                      friends_count = EXCLUDED.friends_count, computed_at = EXCLUDED.computed_at
    `, card.PublicID, int(card.Rank), string(card.Suit), card.FriendsCount, card.ComputedAt.UTC())
	if err != nil {
		return classifyWriteError("upsert card", err)
	}
	return nil
}

// Delete drops the cached card. A missing row reports ErrNotFound.
func (s *PostgresCardStore) Delete(ctx context.Context, publicID string) error {
	conn, err := acquire(ctx, s.pool)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM card_profiles WHERE public_id = $1`, publicID)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ cards.Store = (*PostgresCardStore)(nil)
