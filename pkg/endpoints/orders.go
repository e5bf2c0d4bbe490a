package endpoints

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/veiloq/coinbase-advanced/pkg/rest"
)

// Orders wraps the orders resource.
type Orders struct {
	session *rest.Session
}

// MarketMarketIOC is an immediate-or-cancel market order.
type MarketMarketIOC struct {
	// QuoteSize is the amount of quote currency to spend. Required for
	// BUY orders.
	QuoteSize string `json:"quote_size,omitempty"`

	// BaseSize is the amount of base currency to spend. Required for
	// SELL orders.
	BaseSize string `json:"base_size,omitempty"`
}

// LimitLimitGTC is a good-till-cancelled limit order.
type LimitLimitGTC struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
	PostOnly   bool   `json:"post_only,omitempty"`
}

// LimitLimitGTD is a good-till-date limit order.
type LimitLimitGTD struct {
	BaseSize   string `json:"base_size"`
	LimitPrice string `json:"limit_price"`
	EndTime    string `json:"end_time"`
	PostOnly   bool   `json:"post_only,omitempty"`
}

// StopLimitStopLimitGTC is a good-till-cancelled stop-limit order.
type StopLimitStopLimitGTC struct {
	BaseSize      string `json:"base_size"`
	LimitPrice    string `json:"limit_price"`
	StopPrice     string `json:"stop_price"`
	StopDirection string `json:"stop_direction"`
}

// StopLimitStopLimitGTD is a good-till-date stop-limit order.
type StopLimitStopLimitGTD struct {
	BaseSize      string `json:"base_size"`
	LimitPrice    string `json:"limit_price"`
	StopPrice     string `json:"stop_price"`
	EndTime       string `json:"end_time"`
	StopDirection string `json:"stop_direction"`
}

// OrderConfiguration selects exactly one order type. Unset variants are
// omitted from the request body.
type OrderConfiguration struct {
	MarketMarketIOC       *MarketMarketIOC       `json:"market_market_ioc,omitempty"`
	LimitLimitGTC         *LimitLimitGTC         `json:"limit_limit_gtc,omitempty"`
	LimitLimitGTD         *LimitLimitGTD         `json:"limit_limit_gtd,omitempty"`
	StopLimitStopLimitGTC *StopLimitStopLimitGTC `json:"stop_limit_stop_limit_gtc,omitempty"`
	StopLimitStopLimitGTD *StopLimitStopLimitGTD `json:"stop_limit_stop_limit_gtd,omitempty"`
}

// CreateOrderRequest creates an order for a product. Side is BUY or SELL.
type CreateOrderRequest struct {
	ClientOrderID      string             `json:"client_order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"`
	OrderConfiguration OrderConfiguration `json:"order_configuration"`
}

// CreateOrder submits a new order. Note the exchange caps OPEN orders at
// 500 per product; submissions beyond that fail immediately.
func (o *Orders) CreateOrder(ctx context.Context, req CreateOrderRequest) (json.RawMessage, error) {
	return o.session.Post(ctx, "/orders", req)
}

// CancelOrders initiates cancel requests for one or more orders.
func (o *Orders) CancelOrders(ctx context.Context, orderIDs []string) (json.RawMessage, error) {
	return o.session.Post(ctx, "/orders/batch_cancel", map[string][]string{
		"order_ids": orderIDs,
	})
}

// ListOrdersOptions filters a historical order listing.
type ListOrdersOptions struct {
	ProductID          string
	OrderStatus        []string
	Limit              int
	StartDate          string
	EndDate            string
	UserNativeCurrency string
	OrderType          string
	OrderSide          string
	Cursor             string
	ProductType        string
}

func (o ListOrdersOptions) values() url.Values {
	values := url.Values{}
	setString(values, "product_id", o.ProductID)
	if len(o.OrderStatus) > 0 {
		values["order_status"] = []string{strings.Join(o.OrderStatus, ",")}
	}
	if o.Limit > 0 {
		setInt(values, "limit", o.Limit)
	} else {
		setInt(values, "limit", 100)
	}
	setString(values, "start_date", o.StartDate)
	setString(values, "end_date", o.EndDate)
	setString(values, "user_native_currency", o.UserNativeCurrency)
	setString(values, "order_type", o.OrderType)
	setString(values, "order_side", o.OrderSide)
	setString(values, "cursor", o.Cursor)
	setString(values, "product_type", o.ProductType)
	return values
}

// ListOrders returns historical orders in batch. At most 1000 OPEN
// orders are returned; use the user channel on the stream for more.
func (o *Orders) ListOrders(ctx context.Context, opts ListOrdersOptions) (json.RawMessage, error) {
	return o.session.Get(ctx, "/orders/historical/batch", opts.values())
}

// ListFillsOptions filters a fill listing.
type ListFillsOptions struct {
	OrderID                string
	ProductID              string
	StartSequenceTimestamp string
	EndSequenceTimestamp   string
	Limit                  int
	Cursor                 string
}

func (o ListFillsOptions) values() url.Values {
	values := url.Values{}
	setString(values, "order_id", o.OrderID)
	setString(values, "product_id", o.ProductID)
	setString(values, "start_sequence_timestamp", o.StartSequenceTimestamp)
	setString(values, "end_sequence_timestamp", o.EndSequenceTimestamp)
	setInt(values, "limit", o.Limit)
	setString(values, "cursor", o.Cursor)
	return values
}

// ListFills returns fills filtered by the given options.
func (o *Orders) ListFills(ctx context.Context, opts ListFillsOptions) (json.RawMessage, error) {
	return o.session.Get(ctx, "/orders/historical/fills", opts.values())
}

// GetOrder returns a single order by order ID.
func (o *Orders) GetOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	return o.session.Get(ctx, "/orders/historical/"+orderID, nil)
}
