// Package coinbaseadvanced is an authenticated client for the Coinbase
// Advanced Trade REST and WebSocket APIs.
//
// The library covers the authenticated transport layer end to end: the
// HMAC-SHA256 signing protocol shared by REST requests and WebSocket
// subscriptions, a resilient HTTP session with retry, backoff, rate
// limiting and optional response caching, and a streaming market data
// client that delivers inbound messages in arrival order through a
// blocking queue.
//
// Core packages:
//
//   - pkg/auth: credentials and the request/subscription signer
//
//   - pkg/rest: the resilient authenticated HTTP session
//
//   - pkg/websocket: the market data client and its delivery queue
//
//   - pkg/endpoints: thin wrappers for the accounts, orders, products and
//     transaction_summary resources
//
//   - pkg/logging: the injectable structured logging facade
//
//   - pkg/ratelimit: request pacing for the REST session
//
// # Errors
//
// The library reports failures through a small set of error values and
// types:
//
//   - auth.ErrInvalidCredentials: the API key pair is missing or malformed;
//     surfaced at construction, signing never proceeds without it
//
//   - rest.HTTPError: a non-2xx REST response, carrying the status code,
//     a Client/Server classification and the exchange's error message
//
//   - rest.TransportError: the network layer exhausted its retry budget
//     without obtaining a response
//
//   - websocket.ErrNotConnected: a control frame was requested before the
//     connection was established
//
// Streaming failures are asynchronous: they are logged and the delivery
// queue is closed. A consumer must treat an unexpectedly closed queue as
// an error condition, since no error value is enqueued.
//
// # REST example
//
//	client, err := endpoints.NewClient(auth.Credentials{
//		Key:    os.Getenv("CB_API_KEY"),
//		Secret: os.Getenv("CB_API_SECRET"),
//	}, rest.Options{EnableCache: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	accounts, err := client.Accounts.ListAccounts(ctx, endpoints.ListAccountsOptions{})
//
// # Streaming example
//
//	feed, err := websocket.NewMarketData(creds, websocket.Options{
//		Channel:    "ticker",
//		ProductIDs: []string{"BTC-USD"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := feed.Listen(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer feed.Close()
//
//	for msg := range feed.Queue().Drain() {
//		// process msg
//	}
//
// The streaming client does not reconnect on its own: when the queue
// closes, create a new client and call Listen again.
package coinbaseadvanced
