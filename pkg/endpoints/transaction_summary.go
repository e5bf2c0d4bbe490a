package endpoints

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/veiloq/coinbase-advanced/pkg/rest"
)

// TransactionSummary wraps the transaction_summary resource.
type TransactionSummary struct {
	session *rest.Session
}

// TransactionSummaryOptions narrows the summary window.
type TransactionSummaryOptions struct {
	StartDate          string
	EndDate            string
	UserNativeCurrency string
	ProductType        string
}

func (o TransactionSummaryOptions) values() url.Values {
	values := url.Values{}
	setString(values, "start_date", o.StartDate)
	setString(values, "end_date", o.EndDate)
	setString(values, "user_native_currency", o.UserNativeCurrency)
	setString(values, "product_type", o.ProductType)
	return values
}

// GetTransactionSummary returns fee tiers, total volume and fees for the
// current user.
func (t *TransactionSummary) GetTransactionSummary(ctx context.Context, opts TransactionSummaryOptions) (json.RawMessage, error) {
	return t.session.Get(ctx, "/transaction_summary", opts.values())
}
