package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
	"github.com/DoyleJ11/battlefield-lobby/internal/ws"
)

type Config struct {
	Addr           string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string
	Credentials    string
	DatabaseURL    string

	Rules engine.Rules
	WS    ws.Options
}

// Load reads the process environment, after applying an optional .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	envy.Reload()
	c := Config{
		Addr:           envy.Get("ADDR", ":5000"),
		LogLevel:       envy.Get("LOG_LEVEL", "info"),
		LogFormat:      envy.Get("LOG_FORMAT", "json"),
		AllowedOrigins: list(envy.Get("ALLOWED_ORIGINS", "*")),
		Credentials:    envy.Get("CREDENTIALS", "host:Samuel:samuel"),
		DatabaseURL:    envy.Get("DATABASE_URL", ""),
		Rules:          engine.DefaultRules(),
		WS:             ws.DefaultOptions(),
	}
	c.WS.OriginPatterns = c.AllowedOrigins

	r := &c.Rules
	r.ReservedHostName = envy.Get("RESERVED_HOST_NAME", r.ReservedHostName)
	r.HostRequirement = engine.HostRequirement(envy.Get("HOST_REQUIREMENT", string(r.HostRequirement)))
	switch r.HostRequirement {
	case engine.HostRequirementNone, engine.HostRequirementHost, engine.HostRequirementHostOrCreator:
	default:
		return Config{}, fmt.Errorf("HOST_REQUIREMENT: unknown value %q", r.HostRequirement)
	}
	if catalog := list(envy.Get("ASSET_CATALOG", strings.Join(r.AssetCatalog, ","))); len(catalog) > 0 {
		r.AssetCatalog = catalog
	}

	var err error
	set := func(e error) {
		if err == nil {
			err = e
		}
	}
	set(intVar("MAX_PLAYERS", &r.MaxPlayers, 0))
	set(intVar("GRID_COLUMNS", &r.GridColumns, 1))
	set(intVar("GRID_ROWS", &r.GridRows, 1))
	set(boolVar("CREATOR_IS_HOST", &r.CreatorIsHost))
	set(boolVar("CASCADE_CREATOR_REMOVAL", &r.CascadeCreatorRemoval))
	set(boolVar("HOST_OBSERVES_ONLY", &r.HostObservesOnly))

	w := &c.WS
	set(durationVar("WS_READ_TIMEOUT", &w.ReadTimeout))
	set(durationVar("WS_WRITE_TIMEOUT", &w.WriteTimeout))
	set(intVar("WS_OUTBOX_SIZE", &w.OutboxSize, 1))
	set(intVar("WS_MESSAGE_BURST", &w.MessageBurst, 1))
	set(floatVar("WS_MESSAGE_RATE", &w.MessageRate))
	if err != nil {
		return Config{}, err
	}
	return c, nil
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intVar(name string, dst *int, min int) error {
	raw, err := envy.MustGet(name)
	if err != nil {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if v < min {
		return fmt.Errorf("%s: must be at least %d, got %d", name, min, v)
	}
	*dst = v
	return nil
}

func floatVar(name string, dst *float64) error {
	raw, err := envy.MustGet(name)
	if err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s: must be positive, got %v", name, v)
	}
	*dst = v
	return nil
}

func boolVar(name string, dst *bool) error {
	raw, err := envy.MustGet(name)
	if err != nil {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = v
	return nil
}

func durationVar(name string, dst *time.Duration) error {
	raw, err := envy.MustGet(name)
	if err != nil {
		return nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if v <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", name, v)
	}
	*dst = v
	return nil
}
