package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"pastelcal/internal/auth"
	"pastelcal/internal/config"
	"pastelcal/internal/grouping"
	"pastelcal/internal/holiday"
	appLog "pastelcal/internal/log"
	"pastelcal/internal/model"
	"pastelcal/internal/store"
	"pastelcal/internal/store/diskstore"
	"pastelcal/internal/store/gormstore"
	"pastelcal/internal/store/memstore"
)

// loadConfig reads --config, applies PASTELCAL_* overrides and configures
// the logger from the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	cfg.ApplyEnv(os.Getenv)
	cfg.Normalize()
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// backend is the opened event store plus the account table when the store
// has one.
type backend struct {
	store store.Store
	users *gormstore.Users
	close func() error
}

func openBackend(cfg *config.Config) (*backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		appLog.Info("using in-memory store; events are lost on exit")
		return &backend{store: memstore.New(), close: func() error { return nil }}, nil
	case config.DriverPostgres:
		st, err := gormstore.Open(cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return &backend{store: st, users: st.Users(), close: st.Close}, nil
	default:
		st, err := diskstore.Open(cfg.Storage.DiskPath)
		if err != nil {
			return nil, fmt.Errorf("open disk store: %w", err)
		}
		return &backend{store: st, close: func() error { return nil }}, nil
	}
}

// directory resolves logins against config users first, then the
// database account table when there is one.
func (b *backend) directory(cfg *config.Config) auth.Directory {
	users := make([]model.User, 0, len(cfg.Auth.Users))
	for _, u := range cfg.Auth.Users {
		users = append(users, model.User{Username: u.Username, PasswordHash: u.PasswordHash, Name: u.Name})
	}
	chain := auth.Chain{auth.NewStaticDirectory(users...)}
	if b.users != nil {
		chain = append(chain, b.users)
	}
	return chain
}

func newBuilder(cfg *config.Config) grouping.Builder {
	return grouping.Builder{DefaultTitle: cfg.DefaultTitle, MaxRangeDays: cfg.MaxRangeDays}
}

func newHolidayProvider(cfg *config.Config) *holiday.Provider {
	client := &http.Client{Timeout: 15 * time.Second}
	fetcher := holiday.NewFetcher(cfg.Holidays.CacheDir, client)

	var sources []holiday.Source
	for _, feed := range cfg.Holidays.ICS {
		if feed.URL == "" {
			continue
		}
		sources = append(sources, holiday.ICSSource{Feed: feed, Fetcher: fetcher, Location: cfg.Location()})
	}
	if cfg.Holidays.DataGoKrKey != "" {
		sources = append(sources, holiday.DataGoKr{Key: cfg.Holidays.DataGoKrKey, Client: client})
	}
	appLog.Info("holiday sources configured", "count", len(sources))
	return holiday.NewProvider(sources...)
}
