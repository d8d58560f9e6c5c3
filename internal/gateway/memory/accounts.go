package memory

import (
	"context"
	"strings"

	"github.com/supportsphere/helpdesk/internal/changefeed"
	"github.com/supportsphere/helpdesk/internal/domain"
	"github.com/supportsphere/helpdesk/internal/gateway"
)

type accountStore struct{ g *Gateway }

func (s accountStore) Insert(ctx context.Context, a domain.Account) error {
	return s.g.run(ctx, gateway.OpAccountsInsert, func(d *dataset) ([]changefeed.Signal, error) {
		key := strings.ToLower(a.Email)
		if _, exists := d.accounts[key]; exists {
			return nil, gateway.ErrConflict
		}
		a.CreatedAt = s.g.stamp()
		d.accounts[key] = a
		return nil, nil
	})
}

func (s accountStore) ByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var out domain.Account
	err := s.g.run(ctx, gateway.OpAccountsGet, func(d *dataset) ([]changefeed.Signal, error) {
		a, ok := d.accounts[strings.ToLower(email)]
		if !ok {
			return nil, gateway.ErrNotFound
		}
		out = a
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
