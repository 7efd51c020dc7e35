package main

import (
	"encoding/json"
	"os"
	"time"
)

type Config struct {
	HttpPort                int           `json:"http_port"`
	DbConnString            string        `json:"db_conn_string"`
	RedisAddr               string        `json:"redis_addr"`
	DefaultCountryCode      string        `json:"default_country_code"`
	DispatchPaceIntervalStr string        `json:"dispatch_pace_interval"`
	DispatchPaceInterval    time.Duration `json:"-"`
	OutcomeWriteMaxRetry    int           `json:"outcome_write_max_retry"`
	SimSuccessRate          float64       `json:"sim_success_rate"`
	SimSendDelayStr         string        `json:"sim_send_delay"`
	SimSendDelay            time.Duration `json:"-"`
}

// ReadConfigJson reads json formatted configuration from the given file
func ReadConfigJson(configFile string) (*Config, error) {
	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	cfg := new(Config)

	if err = json.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	cfg.DispatchPaceInterval, err = time.ParseDuration(cfg.DispatchPaceIntervalStr)
	if err != nil {
		return nil, err
	}

	cfg.SimSendDelay, err = time.ParseDuration(cfg.SimSendDelayStr)
	if err != nil {
		return nil, err
	}

	if cfg.DefaultCountryCode == "" {
		cfg.DefaultCountryCode = "55"
	}

	return cfg, nil
}
