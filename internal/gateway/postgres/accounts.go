package postgres

import (
	"context"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type accountStore struct{ g *Gateway }

func (s accountStore) Insert(ctx context.Context, a domain.Account) error {
	const query = `INSERT INTO accounts (user_id, email, password_hash) VALUES ($1, lower($2), $3)`
	return s.g.run(ctx, gateway.OpAccountsInsert, func(db querier) ([]changefeed.Signal, error) {
		_, err := db.Exec(ctx, query, a.UserID, a.Email, a.PasswordHash)
		return nil, err
	})
}

func (s accountStore) ByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `
        SELECT user_id::text, email, password_hash, created_at
        FROM accounts WHERE email = lower($1)`
	var a domain.Account
	err := s.g.run(ctx, gateway.OpAccountsGet, func(db querier) ([]changefeed.Signal, error) {
		return nil, db.QueryRow(ctx, query, email).Scan(&a.UserID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}
