package config

import "time"

type Config struct {
	CacheTTL          time.Duration
	ProviderTimeout   time.Duration
	DefaultMaxResults int
	MaxResultsCap     int
	ResearchModel     string
}

func NewConfig() *Config {
	return &Config{
		CacheTTL:          7 * 24 * time.Hour,
		ProviderTimeout:   30 * time.Second,
		DefaultMaxResults: 10,
		MaxResultsCap:     50,
		ResearchModel:     "gemini-1.5-flash",
	}
}
