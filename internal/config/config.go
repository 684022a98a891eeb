package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Puzzle sources.
const (
	SourceDaily   = "daily"
	SourceBuiltin = "builtin"
)

type AppConfig struct {
	HTTPAddr   string
	EventsAddr string

	RedisURL    string
	DatabaseURL string

	FeedBaseURL   string
	FeedTimeoutMS int
	PuzzleSource  string

	ReplyDelayMS    int
	HintLimit       int
	HintVisibleMS   int
	SessionTTLSec   int
	DailyQuota      int
	VerifySolutions bool
	MessagesDir     string
}

func (c *AppConfig) FeedTimeout() time.Duration {
	return time.Duration(c.FeedTimeoutMS) * time.Millisecond
}

func (c *AppConfig) ReplyDelay() time.Duration {
	return time.Duration(c.ReplyDelayMS) * time.Millisecond
}

func (c *AppConfig) HintVisibility() time.Duration {
	return time.Duration(c.HintVisibleMS) * time.Millisecond
}

func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSec) * time.Second
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:      ":8080",
		EventsAddr:    ":8081",
		FeedBaseURL:   "https://lichess.org",
		FeedTimeoutMS: 8000,
		PuzzleSource:  SourceDaily,
		ReplyDelayMS:  1000,
		HintLimit:     3,
		HintVisibleMS: 3000,
		SessionTTLSec: 3600,
		DailyQuota:    3,
	}

	if v := strings.TrimSpace(os.Getenv("HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("EVENTS_ADDR")); v != "" {
		cfg.EventsAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("PUZZLE_FEED_URL")); v != "" {
		cfg.FeedBaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_SOURCE")); v != "" {
		cfg.PuzzleSource = strings.ToLower(v)
	}

	positive := map[string]*int{
		"PUZZLE_FEED_TIMEOUT_MS": &cfg.FeedTimeoutMS,
		"PUZZLE_HINT_LIMIT":      &cfg.HintLimit,
		"PUZZLE_HINT_VISIBLE_MS": &cfg.HintVisibleMS,
		"PUZZLE_SESSION_TTL":     &cfg.SessionTTLSec,
		"PUZZLE_DAILY_QUOTA":     &cfg.DailyQuota,
	}
	for key, dst := range positive {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	// zero is allowed: replies are played immediately
	if v := strings.TrimSpace(os.Getenv("PUZZLE_REPLY_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ReplyDelayMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_VERIFY_SOLUTIONS")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.VerifySolutions = b
		}
	}

	if cfg.PuzzleSource != SourceDaily && cfg.PuzzleSource != SourceBuiltin {
		return nil, errors.New("PUZZLE_SOURCE must be daily or builtin")
	}
	if cfg.HTTPAddr == cfg.EventsAddr {
		return nil, errors.New("HTTP_ADDR and EVENTS_ADDR must differ")
	}
	return cfg, nil
}
