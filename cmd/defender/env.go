package main

import (
	"strings"

	"github.com/depositdefender/defender/internal/config"
	"github.com/spf13/viper"
)

// wellKnownEnv are applied after the DEFENDER_<SECTION>_<KEY> overlay, so
// they win over the prefixed names
var wellKnownEnv = map[string]string{
	"ai.api_key":         "OPENAI_API_KEY",
	"payment.secret_key": "STRIPE_SECRET_KEY",
	"server.base_url":    "DEFENDER_BASE_URL",
}

// applyEnv overlays environment variables on a loaded config
func applyEnv(cfg *config.Config) {
	v := viper.New()
	v.SetEnvPrefix("DEFENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	overlay(v, cfg)

	known := viper.New()
	for key, name := range wellKnownEnv {
		_ = known.BindEnv(key, name)
	}
	overlay(known, cfg)
}

// overlay copies every key set in v onto cfg
func overlay(v *viper.Viper, cfg *config.Config) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	num("server.port", &cfg.Server.Port)
	str("server.base_url", &cfg.Server.BaseURL)
	str("server.cookie_secret", &cfg.Server.CookieSecret)
	if v.IsSet("server.csrf") {
		cfg.Server.CSRF = v.GetBool("server.csrf")
	}
	num("server.rate_limit_per_minute", &cfg.Server.RateLimitPerMinute)
	num("server.letter_ttl_minutes", &cfg.Server.LetterTTLMinutes)

	str("ai.provider", &cfg.AI.Provider)
	str("ai.api_key", &cfg.AI.APIKey)
	str("ai.model", &cfg.AI.Model)
	str("ai.base_url", &cfg.AI.BaseURL)
	num("ai.timeout_sec", &cfg.AI.TimeoutSec)

	str("payment.provider", &cfg.Payment.Provider)
	str("payment.secret_key", &cfg.Payment.SecretKey)
	str("payment.currency", &cfg.Payment.Currency)
	if v.IsSet("payment.unit_amount") {
		cfg.Payment.UnitAmount = v.GetInt64("payment.unit_amount")
	}
	str("payment.api_url", &cfg.Payment.APIURL)

	str("storage.db_path", &cfg.Storage.DBPath)
}
