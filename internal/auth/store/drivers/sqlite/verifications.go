package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
	"github.com/aussiebroadwan/twostep/internal/auth/store"
)

type verificationsRepo struct {
	db dbtx
	s  *Store
}

func (r *verificationsRepo) CreateVerification(ctx context.Context, v domain.PendingVerification) error {
	identity, err := json.Marshal(v.Identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_verifications
			(nonce_hash, id, code_hash, identity, attempts, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.NonceHash, v.ID, v.CodeHash, string(identity), v.Attempts,
		toMillis(v.CreatedAt), toMillis(v.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *verificationsRepo) GetVerification(ctx context.Context, nonceHash string) (domain.PendingVerification, error) {
	var (
		v                    domain.PendingVerification
		identity             string
		createdAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT nonce_hash, id, code_hash, identity, attempts, created_at, expires_at
		FROM pending_verifications
		WHERE nonce_hash = ?`, nonceHash,
	).Scan(&v.NonceHash, &v.ID, &v.CodeHash, &identity, &v.Attempts, &createdAt, &expiresAt)
	if err != nil {
		return domain.PendingVerification{}, mapNotFound(err)
	}

	if err := json.Unmarshal([]byte(identity), &v.Identity); err != nil {
		return domain.PendingVerification{}, fmt.Errorf("decode identity: %w", err)
	}
	v.CreatedAt = fromMillis(createdAt)
	v.ExpiresAt = fromMillis(expiresAt)
	return v, nil
}

func (r *verificationsRepo) IncrementVerificationAttempts(ctx context.Context, nonceHash string, maxAttempts int) (int, error) {
	var attempts int
	err := r.s.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE pending_verifications
			SET attempts = attempts + 1
			WHERE nonce_hash = ?
			RETURNING attempts`, nonceHash,
		).Scan(&attempts)
		if err != nil {
			return mapNotFound(err)
		}

		if attempts >= maxAttempts {
			_, err = tx.ExecContext(ctx, `DELETE FROM pending_verifications WHERE nonce_hash = ?`, nonceHash)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return attempts, nil
}

func (r *verificationsRepo) DeleteVerification(ctx context.Context, nonceHash string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_verifications WHERE nonce_hash = ?`, nonceHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *verificationsRepo) DeleteExpiredVerifications(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_verifications WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
