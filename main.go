package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/captainplanet9000/cival-dashboard-sub013/service"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dashboardCfg := service.DashboardConfig{
		ListenAddress:    cfg.ListenAddress,
		MarketDataURL:    cfg.MarketDataURL,
		MarketDataAPIKey: cfg.MarketDataAPIKey,
		StreamURL:        cfg.StreamURL,
		DatabaseEndpoint: cfg.DatabaseEndpoint,
		DatabaseUser:     cfg.DatabaseUser,
		DatabasePass:     cfg.DatabasePass,
		Granularity:      cfg.Granularity,
		Cancel:           cancel,
	}
	dashboard, err := service.NewDashboard(ctx, &dashboardCfg)
	if err != nil {
		log.Printf("creating dashboard service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	dashboard.Run(ctx)
}
