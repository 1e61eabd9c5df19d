package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

// Config is the configuration struct for the service.
type Config struct {
	// ListenAddress is the dashboard api listen address.
	ListenAddress string
	// MarketDataURL is the market data service base url.
	MarketDataURL string
	// MarketDataAPIKey is the market data service api key.
	MarketDataAPIKey string
	// StreamURL is the market data websocket feed url. When set, ticks are
	// streamed instead of polled.
	StreamURL string
	// DatabaseEndpoint represents the database connection endpoint.
	DatabaseEndpoint string
	// DatabaseUser is the database user.
	DatabaseUser string
	// DatabasePass is the database user pass.
	DatabasePass string
	// Granularity is the default candle granularity for new entries.
	Granularity string

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if cfg.ListenAddress == "" {
		errs = errors.Join(errs, fmt.Errorf("listen address cannot be an empty string"))
	}
	if cfg.MarketDataURL == "" {
		errs = errors.Join(errs, fmt.Errorf("market data url cannot be an empty string"))
	}
	if cfg.DatabaseEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}
	if cfg.Granularity != "" {
		_, err := shared.ParseGranularity(cfg.Granularity)
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	err = cfg.registerFlag("listenaddress", &cfg.ListenAddress, "the dashboard api listen address")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("marketdataurl", &cfg.MarketDataURL, "the market data service base url")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("marketdataapikey", &cfg.MarketDataAPIKey, "the market data service api key")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("streamurl", &cfg.StreamURL, "the market data websocket feed url")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbendpoint", &cfg.DatabaseEndpoint, "the database connection endpoint")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbuser", &cfg.DatabaseUser, "the database user")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbpass", &cfg.DatabasePass, "the database user pass")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("granularity", &cfg.Granularity, "the default candle granularity")
	if err != nil {
		return err
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}
