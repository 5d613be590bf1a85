package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servicio.
type Config struct {
	OddsAPI    OddsAPIConfig     `yaml:"odds_api"`
	Pricing    PricingConfig     `yaml:"pricing"`
	Evaluator  EvaluatorConfig   `yaml:"evaluator"`
	Weights    []WeightConfig    `yaml:"weights"`
	Trusted    TrustedConfig     `yaml:"trusted"`
	Bookmakers []BookmakerConfig `yaml:"bookmakers"`
	Storage    StorageConfig     `yaml:"storage"`
	Redis      RedisConfig       `yaml:"redis"`
	Telegram   TelegramConfig    `yaml:"telegram"`
	HTTP       HTTPConfig        `yaml:"http"`
	Log        LogConfig         `yaml:"log"`
}

// OddsAPIConfig controla el cliente de The Odds API.
type OddsAPIConfig struct {
	BaseURL         string   `yaml:"base_url"`
	APIKey          string   `yaml:"api_key"` // mejor vía ODDS_API_KEY en .env
	Sport           string   `yaml:"sport"`
	Regions         []string `yaml:"regions"`
	Markets         []string `yaml:"markets"`
	IntervalMinutes int      `yaml:"interval_minutes"`
	RatePerSec      float64  `yaml:"rate_per_sec"`
	TimeoutSeconds  int      `yaml:"timeout_seconds"`
}

// PricingConfig son las tasas del evaluador. Punteros para distinguir una clave
// ausente (default) de un 0 explícito, p.ej. un exchange sin comisión.
type PricingConfig struct {
	FeeRate              *float64 `yaml:"fee_rate"`         // comisión P2P
	MainBuffer           *float64 `yaml:"main_buffer"`      // líneas principales
	AlternateBuffer      *float64 `yaml:"alternate_buffer"` // líneas alternativas
	DivergenceThreshold  *float64 `yaml:"divergence_threshold"`
	OpportunityThreshold *float64 `yaml:"opportunity_threshold"`
}

// EvaluatorConfig controla el fan-out por evento.
type EvaluatorConfig struct {
	MarketKey  string `yaml:"market_key"`
	LineClass  string `yaml:"line_class"` // main | alternate
	MinSources int    `yaml:"min_sources"`
	Workers    int    `yaml:"workers"` // 0 = NumCPU*2
}

// WeightConfig es una entrada de la tabla de pesos del consenso.
type WeightConfig struct {
	Source string  `yaml:"source"`
	Weight float64 `yaml:"weight"`
	Tier   string  `yaml:"tier"` // sharp | major | other
}

// TrustedConfig define qué casas forman el precio de referencia.
type TrustedConfig struct {
	Region string `yaml:"region"`
}

// BookmakerConfig es la ficha de una casa para sembrar el registro.
type BookmakerConfig struct {
	Key    string `yaml:"key"`
	Title  string `yaml:"title"`
	Region string `yaml:"region"`
	IsP2P  bool   `yaml:"is_p2p"`
	Active *bool  `yaml:"active"` // nil = activa
}

// StorageConfig controla dónde se persisten los datos.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
}

// RedisConfig controla la publicación a Redis Streams.
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Addr         string `yaml:"addr"`
	StreamPrefix string `yaml:"stream_prefix"`
	MaxLen       int64  `yaml:"max_len"`
}

// TelegramConfig controla las alertas de +EV por Telegram.
type TelegramConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Token       string  `yaml:"token"`   // mejor vía TELEGRAM_BOT_TOKEN en .env
	ChatID      int64   `yaml:"chat_id"` // o TELEGRAM_CHAT_ID
	MinEV       float64 `yaml:"min_ev"`  // EV/100 mínimo para alertar
	MaxPerCycle int     `yaml:"max_per_cycle"`
}

// HTTPConfig controla la API de lectura.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Los valores del .env sobreescriben los del YAML para las keys que correspondan.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

// Parse interpreta el YAML, aplica overrides de entorno y defaults, y valida.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.DomainPricing().Validate(); err != nil {
		return nil, err
	}
	if _, err := domain.ParseLineClass(cfg.Evaluator.LineClass); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PollInterval devuelve el intervalo de polling como time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.OddsAPI.IntervalMinutes) * time.Minute
}

// Timeout devuelve el timeout HTTP del cliente de cuotas.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.OddsAPI.TimeoutSeconds) * time.Second
}

// DomainPricing convierte la sección pricing al valor que usa el núcleo.
// Las claves ausentes toman el valor por defecto.
func (c *Config) DomainPricing() domain.PricingConfig {
	def := domain.DefaultPricingConfig()
	return domain.PricingConfig{
		FeeRate:              valueOr(c.Pricing.FeeRate, def.FeeRate),
		MainBuffer:           valueOr(c.Pricing.MainBuffer, def.MainBuffer),
		AlternateBuffer:      valueOr(c.Pricing.AlternateBuffer, def.AlternateBuffer),
		DivergenceThreshold:  valueOr(c.Pricing.DivergenceThreshold, def.DivergenceThreshold),
		OpportunityThreshold: valueOr(c.Pricing.OpportunityThreshold, def.OpportunityThreshold),
	}
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// LineClass devuelve la clase de línea configurada (main por defecto).
func (c *Config) LineClass() domain.LineClass {
	lc, _ := domain.ParseLineClass(c.Evaluator.LineClass)
	return lc
}

// WeightTable convierte la lista de pesos en la tabla del consenso.
func (c *Config) WeightTable() domain.WeightTable {
	wt := make(domain.WeightTable, len(c.Weights))
	for _, w := range c.Weights {
		tier := domain.SourceTier(strings.ToLower(w.Tier))
		if tier == "" {
			tier = domain.TierOther
		}
		wt[w.Source] = domain.SourceWeight{Weight: w.Weight, Tier: tier}
	}
	return wt
}

// BookmakerRegistry convierte la lista de casas en fichas del dominio.
func (c *Config) BookmakerRegistry() []domain.Bookmaker {
	out := make([]domain.Bookmaker, 0, len(c.Bookmakers))
	for _, b := range c.Bookmakers {
		active := true
		if b.Active != nil {
			active = *b.Active
		}
		title := b.Title
		if title == "" {
			title = b.Key
		}
		out = append(out, domain.Bookmaker{
			Key:    b.Key,
			Title:  title,
			Region: b.Region,
			IsP2P:  b.IsP2P,
			Active: active,
		})
	}
	return out
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ODDS_API_KEY"); v != "" {
		cfg.OddsAPI.APIKey = v
	}
	if v := os.Getenv("FAIRLINE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	if cfg.OddsAPI.BaseURL == "" {
		cfg.OddsAPI.BaseURL = "https://api.the-odds-api.com/v4"
	}
	if cfg.OddsAPI.Sport == "" {
		cfg.OddsAPI.Sport = "basketball_nba"
	}
	if len(cfg.OddsAPI.Regions) == 0 {
		cfg.OddsAPI.Regions = []string{"us", "us_ex"}
	}
	if len(cfg.OddsAPI.Markets) == 0 {
		cfg.OddsAPI.Markets = []string{"h2h"}
	}
	if cfg.OddsAPI.IntervalMinutes <= 0 {
		cfg.OddsAPI.IntervalMinutes = 15
	}
	if cfg.OddsAPI.RatePerSec <= 0 {
		cfg.OddsAPI.RatePerSec = 1
	}
	if cfg.OddsAPI.TimeoutSeconds <= 0 {
		cfg.OddsAPI.TimeoutSeconds = 30
	}

	if cfg.Evaluator.MarketKey == "" {
		cfg.Evaluator.MarketKey = "h2h"
	}
	if cfg.Evaluator.MinSources <= 0 {
		cfg.Evaluator.MinSources = 2
	}

	if len(cfg.Weights) == 0 {
		cfg.Weights = []WeightConfig{
			{Source: "pinnacle", Weight: 0.50, Tier: "sharp"},
			{Source: "draftkings", Weight: 0.25, Tier: "major"},
			{Source: "fanduel", Weight: 0.25, Tier: "major"},
		}
	}
	if len(cfg.Bookmakers) == 0 {
		cfg.Bookmakers = defaultBookmakers()
	}
	if cfg.Trusted.Region == "" {
		cfg.Trusted.Region = "us"
	}

	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "fairline.db"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.StreamPrefix == "" {
		cfg.Redis.StreamPrefix = "fairline"
	}
	if cfg.Redis.MaxLen <= 0 {
		cfg.Redis.MaxLen = 10000
	}
	if cfg.Telegram.MinEV == 0 {
		cfg.Telegram.MinEV = -100 // sin filtro: cualquier +EV
	}
	if cfg.Telegram.MaxPerCycle <= 0 {
		cfg.Telegram.MaxPerCycle = 10
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// defaultBookmakers es el registro inicial: casas US tradicionales, exchanges
// P2P y las referencias internacionales.
func defaultBookmakers() []BookmakerConfig {
	return []BookmakerConfig{
		{Key: "draftkings", Title: "DraftKings", Region: "us"},
		{Key: "fanduel", Title: "FanDuel", Region: "us"},
		{Key: "caesars", Title: "Caesars", Region: "us"},
		{Key: "betmgm", Title: "BetMGM", Region: "us"},
		{Key: "pointsbetus", Title: "PointsBet (US)", Region: "us"},
		{Key: "betrivers", Title: "BetRivers", Region: "us"},
		{Key: "unibet", Title: "Unibet", Region: "us"},
		{Key: "sporttrade", Title: "Sporttrade", Region: "us", IsP2P: true},
		{Key: "prophetx", Title: "ProphetX", Region: "us", IsP2P: true},
		{Key: "novig", Title: "Novig", Region: "us", IsP2P: true},
		{Key: "pinnacle", Title: "Pinnacle", Region: "eu"},
		{Key: "betfair", Title: "Betfair", Region: "uk", IsP2P: true},
	}
}
