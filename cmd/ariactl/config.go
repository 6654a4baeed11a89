package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aria-labs/ariactl/internal/backend"
	"github.com/aria-labs/ariactl/internal/channel"
	"github.com/aria-labs/ariactl/internal/jobpoll"
)

type fileConfig struct {
	BackendURL     string `toml:"backend_url"`
	ChannelURL     string `toml:"channel_url"`
	AuthTokenURL   string `toml:"auth_token_url"`
	ClientID       string `toml:"client_id"`
	ClientSecret   string `toml:"client_secret"`
	RequestTimeout string `toml:"request_timeout"`
	DialTimeout    string `toml:"dial_timeout"`
	RetryInitial   string `toml:"retry_initial_delay"`
	RetryMax       string `toml:"retry_max_delay"`
	RetryJitter    bool   `toml:"retry_jitter"`
	PollInterval   string `toml:"poll_interval"`
}

type authConfig struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
}

type appConfig struct {
	Backend      backend.Config
	Channel      channel.Config
	Auth         authConfig
	PollInterval time.Duration
}

func defaultAppConfig() appConfig {
	return appConfig{
		Backend:      backend.DefaultConfig(),
		Channel:      channel.DefaultConfig(),
		PollInterval: jobpoll.DefaultInterval,
	}
}

func loadAppConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load ariactl config: %w", err)
	}

	if meta.IsDefined("backend_url") {
		cfg.Backend.BaseURL = strings.TrimSpace(raw.BackendURL)
	}

	if meta.IsDefined("channel_url") {
		cfg.Channel.BaseURL = strings.TrimSpace(raw.ChannelURL)
	}

	if meta.IsDefined("auth_token_url") {
		cfg.Auth.AuthURL = strings.TrimSpace(raw.AuthTokenURL)
	}

	if meta.IsDefined("client_id") {
		cfg.Auth.ClientID = strings.TrimSpace(raw.ClientID)
	}

	if meta.IsDefined("client_secret") {
		cfg.Auth.ClientSecret = strings.TrimSpace(raw.ClientSecret)
	}

	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.Backend.RequestTimeout = d
	}

	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.Channel.DialTimeout = d
	}

	if meta.IsDefined("retry_initial_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RetryInitial))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse retry_initial_delay: %w", err)
		}
		cfg.Channel.Retry.InitialDelay = d
	}

	if meta.IsDefined("retry_max_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RetryMax))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse retry_max_delay: %w", err)
		}
		cfg.Channel.Retry.MaxDelay = d
	}

	if meta.IsDefined("retry_jitter") {
		cfg.Channel.Retry.Jitter = raw.RetryJitter
	}

	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.PollInterval = d
	}

	return cfg, nil
}
