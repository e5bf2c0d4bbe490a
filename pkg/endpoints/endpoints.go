// Package endpoints provides thin wrappers over the Advanced Trade REST
// resources. Each wrapper assembles a resource path and query values and
// forwards them to the authenticated session; response bodies are
// returned as raw JSON for the caller to decode.
package endpoints

import (
	"strconv"

	"github.com/veiloq/coinbase-advanced/pkg/auth"
	"github.com/veiloq/coinbase-advanced/pkg/rest"
)

// Client bundles every resource endpoint over one shared session.
type Client struct {
	session *rest.Session

	Accounts           *Accounts
	Orders             *Orders
	Products           *Products
	TransactionSummary *TransactionSummary
}

// NewClient creates the endpoint catalog.
//
// Example:
//
//	client, err := endpoints.NewClient(auth.Credentials{
//		Key:    os.Getenv("CB_API_KEY"),
//		Secret: os.Getenv("CB_API_SECRET"),
//	}, rest.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	accounts, err := client.Accounts.ListAccounts(ctx, endpoints.ListAccountsOptions{})
func NewClient(creds auth.Credentials, opts rest.Options) (*Client, error) {
	session, err := rest.NewSession(creds, opts)
	if err != nil {
		return nil, err
	}
	return NewClientWithSession(session), nil
}

// NewClientWithSession wraps an existing session, which the caller
// remains responsible for closing if Close is never called here.
func NewClientWithSession(session *rest.Session) *Client {
	return &Client{
		session:            session,
		Accounts:           &Accounts{session: session},
		Orders:             &Orders{session: session},
		Products:           &Products{session: session},
		TransactionSummary: &TransactionSummary{session: session},
	}
}

// Close releases the underlying session's connections.
func (c *Client) Close() {
	c.session.Close()
}

func setInt(values map[string][]string, key string, v int) {
	if v > 0 {
		values[key] = []string{strconv.Itoa(v)}
	}
}

func setString(values map[string][]string, key, v string) {
	if v != "" {
		values[key] = []string{v}
	}
}
