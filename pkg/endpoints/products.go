package endpoints

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/veiloq/coinbase-advanced/pkg/rest"
)

// Products wraps the products resource.
type Products struct {
	session *rest.Session
}

// ListProductsOptions narrows a product listing.
type ListProductsOptions struct {
	Limit       int
	Offset      int
	ProductType string
}

func (o ListProductsOptions) values() url.Values {
	values := url.Values{}
	setInt(values, "limit", o.Limit)
	setInt(values, "offset", o.Offset)
	setString(values, "product_type", o.ProductType)
	return values
}

// ListProducts returns the currency pairs available for trading.
func (p *Products) ListProducts(ctx context.Context, opts ListProductsOptions) (json.RawMessage, error) {
	return p.session.Get(ctx, "/products", opts.values())
}

// GetProduct returns a single product by product ID.
func (p *Products) GetProduct(ctx context.Context, productID string) (json.RawMessage, error) {
	return p.session.Get(ctx, "/products/"+productID, nil)
}

// Granularity values accepted by GetCandles.
const (
	GranularityOneMinute     = "ONE_MINUTE"
	GranularityFiveMinute    = "FIVE_MINUTE"
	GranularityFifteenMinute = "FIFTEEN_MINUTE"
	GranularityThirtyMinute  = "THIRTY_MINUTE"
	GranularityOneHour       = "ONE_HOUR"
	GranularityTwoHour       = "TWO_HOUR"
	GranularitySixHour       = "SIX_HOUR"
	GranularityOneDay        = "ONE_DAY"
)

// GetCandles returns rates for a product bucketed by granularity. Start
// and end are UNIX timestamps.
func (p *Products) GetCandles(ctx context.Context, productID, start, end, granularity string) (json.RawMessage, error) {
	return p.session.Get(ctx, "/products/"+productID+"/candles", url.Values{
		"start":       {start},
		"end":         {end},
		"granularity": {granularity},
	})
}

// GetMarketTrades returns a snapshot of the last trades, best bid/ask
// and 24h volume for a product.
func (p *Products) GetMarketTrades(ctx context.Context, productID string, limit int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	values := url.Values{}
	setInt(values, "limit", limit)
	return p.session.Get(ctx, "/products/"+productID+"/ticker", values)
}
