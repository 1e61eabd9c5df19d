package main

import (
	"flag"
	"os"
	"strings"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr []string
	}{
		{
			name: "valid config",
			cfg: Config{
				ListenAddress:    ":8080",
				MarketDataURL:    "http://localhost:9000",
				DatabaseEndpoint: "http://localhost:4001",
			},
			wantErr: nil,
		},
		{
			name: "valid config with optional fields",
			cfg: Config{
				ListenAddress:    ":8080",
				MarketDataURL:    "http://localhost:9000",
				MarketDataAPIKey: "apikey",
				StreamURL:        "ws://localhost:9001/stream",
				DatabaseEndpoint: "http://localhost:4001",
				DatabaseUser:     "user",
				DatabasePass:     "pass",
				Granularity:      "5m",
			},
			wantErr: nil,
		},
		{
			name: "missing listen address",
			cfg: Config{
				MarketDataURL:    "http://localhost:9000",
				DatabaseEndpoint: "http://localhost:4001",
			},
			wantErr: []string{"listen address cannot be an empty string"},
		},
		{
			name: "missing market data url",
			cfg: Config{
				ListenAddress:    ":8080",
				DatabaseEndpoint: "http://localhost:4001",
			},
			wantErr: []string{"market data url cannot be an empty string"},
		},
		{
			name: "missing database endpoint",
			cfg: Config{
				ListenAddress: ":8080",
				MarketDataURL: "http://localhost:9000",
			},
			wantErr: []string{"database endpoint cannot be an empty string"},
		},
		{
			name: "missing everything",
			cfg:  Config{},
			wantErr: []string{
				"listen address cannot be an empty string",
				"market data url cannot be an empty string",
				"database endpoint cannot be an empty string",
			},
		},
		{
			name: "invalid granularity",
			cfg: Config{
				ListenAddress:    ":8080",
				MarketDataURL:    "http://localhost:9000",
				DatabaseEndpoint: "http://localhost:4001",
				Granularity:      "7m",
			},
			wantErr: []string{"unknown granularity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Errorf("expected no error, got: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("expected error(s) %v, got none", tt.wantErr)
					return
				}
				for _, want := range tt.wantErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	// Save and restore original os.Args and environment
	origArgs := os.Args
	origEnv := os.Environ()
	defer func() {
		os.Args = origArgs
		for _, kv := range origEnv {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) == 2 {
				os.Setenv(parts[0], parts[1])
			}
		}
	}()

	tests := []struct {
		name        string
		env         map[string]string
		args        []string
		expectErr   bool
		expectInErr []string
		expectCfg   Config
	}{
		{
			name: "all from env",
			env: map[string]string{
				"listenaddress": ":8080",
				"marketdataurl": "http://localhost:9000",
				"dbendpoint":    "http://localhost:4001",
			},
			args:      []string{"cmd"},
			expectErr: false,
			expectCfg: Config{
				ListenAddress:    ":8080",
				MarketDataURL:    "http://localhost:9000",
				DatabaseEndpoint: "http://localhost:4001",
			},
		},
		{
			name: "all from flags",
			env:  map[string]string{},
			args: []string{"cmd", "-listenaddress=:8080", "-marketdataurl=http://localhost:9000",
				"-dbendpoint=http://localhost:4001", "-granularity=5m"},
			expectErr: false,
			expectCfg: Config{
				ListenAddress:    ":8080",
				MarketDataURL:    "http://localhost:9000",
				DatabaseEndpoint: "http://localhost:4001",
				Granularity:      "5m",
			},
		},
		{
			name: "flags override env",
			env: map[string]string{
				"listenaddress": ":8080",
				"marketdataurl": "http://localhost:9000",
				"dbendpoint":    "http://localhost:4001",
				"granularity":   "1m",
			},
			args:      []string{"cmd", "-granularity=15m"},
			expectErr: false,
			expectCfg: Config{
				ListenAddress:    ":8080",
				MarketDataURL:    "http://localhost:9000",
				DatabaseEndpoint: "http://localhost:4001",
				Granularity:      "15m",
			},
		},
		{
			name:      "missing required fields",
			env:       map[string]string{},
			args:      []string{"cmd"},
			expectErr: true,
			expectInErr: []string{
				"listen address cannot be an empty string",
				"market data url cannot be an empty string",
				"database endpoint cannot be an empty string",
			},
		},
		{
			name: "invalid granularity from env",
			env: map[string]string{
				"listenaddress": ":8080",
				"marketdataurl": "http://localhost:9000",
				"dbendpoint":    "http://localhost:4001",
				"granularity":   "bogus",
			},
			args:        []string{"cmd"},
			expectErr:   true,
			expectInErr: []string{"unknown granularity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset flags for each test
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

			// Set environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Set command-line arguments
			os.Args = tt.args

			var cfg Config
			err := loadConfig(&cfg, "") // don't load .env file

			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				for _, want := range tt.expectInErr {
					if !strings.Contains(err.Error(), want) {
						t.Errorf("expected error to contain %q, got %v", want, err)
					}
				}
			} else {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if cfg.ListenAddress != tt.expectCfg.ListenAddress {
					t.Errorf("ListenAddress: got %v, want %v", cfg.ListenAddress, tt.expectCfg.ListenAddress)
				}
				if cfg.MarketDataURL != tt.expectCfg.MarketDataURL {
					t.Errorf("MarketDataURL: got %v, want %v", cfg.MarketDataURL, tt.expectCfg.MarketDataURL)
				}
				if cfg.DatabaseEndpoint != tt.expectCfg.DatabaseEndpoint {
					t.Errorf("DatabaseEndpoint: got %v, want %v", cfg.DatabaseEndpoint, tt.expectCfg.DatabaseEndpoint)
				}
				if tt.expectCfg.Granularity != "" && cfg.Granularity != tt.expectCfg.Granularity {
					t.Errorf("Granularity: got %v, want %v", cfg.Granularity, tt.expectCfg.Granularity)
				}
			}

			// Clean up env
			for k := range tt.env {
				os.Unsetenv(k)
			}
		})
	}
}
