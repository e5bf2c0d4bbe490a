package endpoints

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/veiloq/coinbase-advanced/pkg/rest"
)

// Accounts wraps the accounts resource.
type Accounts struct {
	session *rest.Session
}

// ListAccountsOptions narrows an account listing.
type ListAccountsOptions struct {
	// Limit is a pagination limit, default 49 and maximum 250.
	Limit int

	// Cursor resumes pagination after a previous response's cursor.
	Cursor string
}

func (o ListAccountsOptions) values() url.Values {
	values := url.Values{}
	setInt(values, "limit", o.Limit)
	setString(values, "cursor", o.Cursor)
	return values
}

// ListAccounts returns the authenticated accounts for the current user.
func (a *Accounts) ListAccounts(ctx context.Context, opts ListAccountsOptions) (json.RawMessage, error) {
	return a.session.Get(ctx, "/accounts", opts.values())
}

// GetAccount returns a single account by UUID.
func (a *Accounts) GetAccount(ctx context.Context, accountUUID string) (json.RawMessage, error) {
	return a.session.Get(ctx, "/accounts/"+accountUUID, nil)
}
