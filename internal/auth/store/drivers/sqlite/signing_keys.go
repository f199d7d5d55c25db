package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/twostep/internal/auth/domain"
)

type signingKeysRepo struct {
	db dbtx
}

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO signing_keys (kid, id, algorithm, private_key_encrypted, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key.Kid, key.ID, key.Algorithm, key.PrivateKeyEncrypted,
		toMillis(key.CreatedAt), toMillis(key.ExpiresAt),
	)
	return mapConstraint(err)
}

func (r *signingKeysRepo) ListSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT kid, id, algorithm, private_key_encrypted, created_at, expires_at
		FROM signing_keys
		WHERE expires_at > ?
		ORDER BY created_at ASC`, toMillis(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		var (
			k                    domain.SigningKey
			createdAt, expiresAt int64
		)
		if err := rows.Scan(&k.Kid, &k.ID, &k.Algorithm, &k.PrivateKeyEncrypted, &createdAt, &expiresAt); err != nil {
			return nil, err
		}
		k.CreatedAt = fromMillis(createdAt)
		k.ExpiresAt = fromMillis(expiresAt)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM signing_keys WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
