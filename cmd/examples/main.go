package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veiloq/coinbase-advanced/pkg/auth"
	"github.com/veiloq/coinbase-advanced/pkg/endpoints"
	"github.com/veiloq/coinbase-advanced/pkg/logging"
	"github.com/veiloq/coinbase-advanced/pkg/rest"
	"github.com/veiloq/coinbase-advanced/pkg/websocket"
)

func main() {
	logger := logging.NewZapLogger(logging.WithDebugLevel())

	creds := auth.Credentials{
		Key:    os.Getenv("CB_API_KEY"),
		Secret: os.Getenv("CB_API_SECRET"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// REST: list accounts and products through the endpoint catalog.
	client, err := endpoints.NewClient(creds, rest.Options{
		Retries:     3,
		Backoff:     time.Second,
		Timeout:     30 * time.Second,
		EnableCache: true,
		CacheTTL:    time.Minute,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to create client", logging.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("fetching accounts")
	accounts, err := client.Accounts.ListAccounts(ctx, endpoints.ListAccountsOptions{Limit: 10})
	if err != nil {
		logger.Error("failed to list accounts", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("accounts received", logging.Int("bytes", len(accounts)))

	logger.Info("fetching products")
	products, err := client.Products.ListProducts(ctx, endpoints.ListProductsOptions{
		Limit:       5,
		ProductType: "SPOT",
	})
	if err != nil {
		logger.Error("failed to list products", logging.Error(err))
		os.Exit(1)
	}
	logger.Info("products received", logging.Int("bytes", len(products)))

	// Streaming: subscribe to the ticker channel and consume the queue.
	feed, err := websocket.NewMarketData(creds, websocket.Options{
		Channel:    "ticker",
		ProductIDs: []string{"BTC-USD", "ETH-USD"},
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to create market data client", logging.Error(err))
		os.Exit(1)
	}

	logger.Info("connecting to market data feed")
	if err := feed.Listen(ctx); err != nil {
		logger.Error("failed to start listening", logging.Error(err))
		os.Exit(1)
	}
	defer feed.Close()

	go func() {
		for msg := range feed.Queue().Drain() {
			logger.Info("market data message",
				logging.String("channel", str(msg["channel"])),
				logging.String("type", str(msg["type"])),
			)
		}
		logger.Info("market data queue closed")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("running... press Ctrl+C to exit")
	<-sigChan

	logger.Info("shutting down")
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
