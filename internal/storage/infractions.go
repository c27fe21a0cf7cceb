package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type UserInfraction struct {
	GuildID    string
	UserID     string
	CountTotal int
	LastAt     time.Time
	LastAction string
}

func (s *Store) GetInfraction(ctx context.Context, guildID, userID string) (UserInfraction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT guild_id, user_id, count_total, last_at, COALESCE(last_action, '')
		FROM user_infractions
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)

	var inf UserInfraction
	var lastAt int64
	err := row.Scan(&inf.GuildID, &inf.UserID, &inf.CountTotal, &lastAt, &inf.LastAction)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserInfraction{}, nil
		}
		return UserInfraction{}, err
	}
	inf.LastAt = time.Unix(lastAt, 0)
	return inf, nil
}

// IncrementInfraction bumps the per-user counter and returns the count
// BEFORE this incident, which alerts report as prior incidents.
func (s *Store) IncrementInfraction(ctx context.Context, guildID, userID, lastAction string) (int, error) {
	now := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var count int
	row := tx.QueryRowContext(ctx, `
		SELECT count_total
		FROM user_infractions
		WHERE guild_id = ? AND user_id = ?
	`, guildID, userID)
	scanErr := row.Scan(&count)
	if scanErr != nil && !errors.Is(scanErr, sql.ErrNoRows) {
		err = scanErr
		return 0, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_infractions (guild_id, user_id, count_total, last_at, last_action)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			count_total = excluded.count_total,
			last_at = excluded.last_at,
			last_action = excluded.last_action
	`, guildID, userID, count+1, now.Unix(), lastAction)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}
