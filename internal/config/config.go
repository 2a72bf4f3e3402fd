// Package config loads the application's settings once at startup.
//
// Values come from built-in defaults, an optional YAML file, SAHACHARI_*
// environment variables and finally the well-known provider credential
// variables. Missing credentials disable the tiers that need them.
// Malformed values are reported as *Error and must stop the program.
package config

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"codeberg.org/snonux/sahachari/internal/fallback"
	"codeberg.org/snonux/sahachari/internal/logging"
)

// Service names.
const (
	ServiceTranslation = "translation"
	ServiceSpeech      = "speech"
	ServiceVision      = "vision"
	ServiceRecipe      = "recipe"
)

// Provider names.
const (
	ProviderGoogleTranslate = "google-translate"
	ProviderGlossary        = "glossary"
	ProviderGoogleTTS       = "google-tts"
	ProviderOpenAITTS       = "openai-tts"
	ProviderLocalTTS        = "local-tts"
	ProviderGoogleVision    = "google-vision"
	ProviderAzureVision     = "azure-vision"
	ProviderHeuristics      = "heuristics"
	ProviderSpoonacular     = "spoonacular"
	ProviderOpenAI          = "openai"
	ProviderGemini          = "gemini"
	ProviderTemplates       = "templates"
)

// Storage formats.
const (
	FormatJSON   = "json"
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Error is a present but malformed configuration value.
type Error struct {
	Key    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsError reports whether err is a configuration error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// TierConfig is the configuration of one handler.
type TierConfig struct {
	Tier     fallback.Tier
	Provider string
	APIKey   string
	Endpoint string
	Model    string
	Enabled  bool

	// Speech specific.
	Voice       string
	Speed       float64
	Instruction string
}

// ServiceConfig is the configuration of one fallback chain.
type ServiceConfig struct {
	Name    string
	Timeout time.Duration
	Tiers   []TierConfig
}

// Tier returns the tier configured for provider.
func (s ServiceConfig) Tier(provider string) (TierConfig, bool) {
	for _, t := range s.Tiers {
		if t.Provider == provider {
			return t, true
		}
	}
	return TierConfig{}, false
}

// StorageConfig selects persistence backends.
type StorageConfig struct {
	Dir         string
	Format      string
	Collections map[string]string
}

// FormatFor returns the backend format for a collection.
func (s StorageConfig) FormatFor(collection string) string {
	if f, ok := s.Collections[collection]; ok {
		return f
	}
	return s.Format
}

// Config is immutable after Load. Accessors return copies.
type Config struct {
	file string

	log           logging.Options
	storage       StorageConfig
	cacheDir      string
	serverAddr    string
	rateLimit     int
	breaker       fallback.BreakerConfig
	maxImageBytes int64
	espeakBinary  string
	llmProvider   string
	ttsProvider   string

	services map[string]ServiceConfig
}

// Options controls Load.
type Options struct {
	// File is an explicit config file. Empty searches $HOME and the
	// working directory for .sahachari.yaml.
	File string
	// Viper carries flag bindings. Nil uses a fresh instance.
	Viper *viper.Viper
}

// credentialEnv maps config keys to the provider variables users already have.
var credentialEnv = map[string]string{
	"translation.google.api_key": "GOOGLE_TRANSLATE_API_KEY",
	"tts.google.api_key":         "GOOGLE_CLOUD_TTS_API_KEY",
	"tts.openai.api_key":         "OPENAI_API_KEY",
	"vision.google.api_key":      "GOOGLE_VISION_API_KEY",
	"vision.azure.api_key":       "AZURE_COMPUTER_VISION_KEY",
	"vision.azure.endpoint":      "AZURE_COMPUTER_VISION_ENDPOINT",
	"recipe.spoonacular.api_key": "SPOONACULAR_API_KEY",
	"recipe.openai.api_key":      "OPENAI_API_KEY",
	"recipe.gemini.api_key":      "GEMINI_API_KEY",
}

// DefaultStateDir is where data and caches live unless configured.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "state", "sahachari")
}

func setDefaults(v *viper.Viper) {
	state := DefaultStateDir()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("data_dir", filepath.Join(state, "data"))
	v.SetDefault("cache_dir", filepath.Join(state, "cache"))
	v.SetDefault("storage.format", FormatJSON)
	v.SetDefault("server.addr", "127.0.0.1:8080")
	v.SetDefault("rate_limit", 60)
	v.SetDefault("breaker.threshold", 5)
	v.SetDefault("breaker.cooldown", "30s")

	v.SetDefault("translation.timeout", "10s")
	v.SetDefault("translation.google.endpoint", "https://translation.googleapis.com/language/translate/v2")

	v.SetDefault("tts.timeout", "20s")
	v.SetDefault("tts.provider", "google")
	v.SetDefault("tts.google.endpoint", "https://texttospeech.googleapis.com/v1/text:synthesize")
	v.SetDefault("tts.openai.model", "gpt-4o-mini-tts")
	v.SetDefault("tts.openai.voice", "nova")
	v.SetDefault("tts.openai.speed", 0.9)
	v.SetDefault("tts.espeak.binary", "espeak-ng")

	v.SetDefault("vision.timeout", "15s")
	v.SetDefault("vision.max_image_bytes", 10<<20)
	v.SetDefault("vision.google.endpoint", "https://vision.googleapis.com/v1/images:annotate")

	v.SetDefault("recipe.timeout", "30s")
	v.SetDefault("recipe.llm", ProviderOpenAI)
	v.SetDefault("recipe.spoonacular.endpoint", "https://api.spoonacular.com")
	v.SetDefault("recipe.openai.model", "gpt-4o-mini")
	v.SetDefault("recipe.gemini.model", "gemini-2.0-flash")
}

// Load reads the configuration. The returned error is an *Error for every
// malformed value.
func Load(opts Options) (*Config, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".sahachari")
	}

	v.SetEnvPrefix("SAHACHARI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range credentialEnv {
		prefixed := "SAHACHARI_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env, prefixed); err != nil {
			return nil, &Error{Key: key, Reason: "cannot bind environment", Err: err}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, &Error{Key: "config", Reason: "cannot read config file", Err: err}
		}
	}

	r := &reader{v: v}
	c := r.build()
	if r.err != nil {
		return nil, r.err
	}
	c.file = v.ConfigFileUsed()
	return c, nil
}

// reader converts raw values and keeps the first error.
type reader struct {
	v   *viper.Viper
	err error
}

func (r *reader) fail(key, reason string, err error) {
	if r.err == nil {
		r.err = &Error{Key: key, Reason: reason, Err: err}
	}
}

func (r *reader) str(key string) string {
	s, err := cast.ToStringE(r.v.Get(key))
	if err != nil {
		r.fail(key, "not a string", err)
	}
	return strings.TrimSpace(s)
}

func (r *reader) duration(key string) time.Duration {
	d, err := cast.ToDurationE(r.v.Get(key))
	if err != nil {
		r.fail(key, "not a duration", err)
		return 0
	}
	if d <= 0 {
		r.fail(key, "must be positive", nil)
	}
	return d
}

func (r *reader) boolean(key string) bool {
	b, err := cast.ToBoolE(r.v.Get(key))
	if err != nil {
		r.fail(key, "not a boolean", err)
	}
	return b
}

func (r *reader) integer(key string) int {
	n, err := cast.ToIntE(r.v.Get(key))
	if err != nil {
		r.fail(key, "not an integer", err)
		return 0
	}
	if n < 0 {
		r.fail(key, "must not be negative", nil)
	}
	return n
}

func (r *reader) float(key string) float64 {
	f, err := cast.ToFloat64E(r.v.Get(key))
	if err != nil {
		r.fail(key, "not a number", err)
	}
	return f
}

// credential returns an API key. Empty means unset.
func (r *reader) credential(key string) string {
	s := r.str(key)
	for _, c := range s {
		if c <= ' ' || c > '~' {
			r.fail(key, "credential contains whitespace or non-printable characters", nil)
			return ""
		}
	}
	return s
}

// endpoint returns an absolute http(s) URL. Empty means unset.
func (r *reader) endpoint(key string) string {
	s := r.str(key)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		r.fail(key, "invalid URL", err)
		return ""
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		r.fail(key, "must be an absolute http or https URL", nil)
		return ""
	}
	return strings.TrimRight(s, "/")
}

func (r *reader) oneOf(key string, allowed ...string) string {
	s := strings.ToLower(r.str(key))
	if !slices.Contains(allowed, s) {
		r.fail(key, fmt.Sprintf("must be one of %s", strings.Join(allowed, ", ")), fmt.Errorf("got %q", s))
	}
	return s
}

func (r *reader) build() *Config {
	c := &Config{services: make(map[string]ServiceConfig)}

	level := r.str("log.level")
	if _, err := logging.ParseLevel(level); err != nil {
		r.fail("log.level", "unknown level", err)
	}
	c.log = logging.Options{Level: level, JSON: r.boolean("log.json")}

	c.storage = StorageConfig{
		Dir:         r.str("data_dir"),
		Format:      r.oneOf("storage.format", FormatJSON, FormatCSV, FormatSQLite),
		Collections: make(map[string]string),
	}
	for name := range r.v.GetStringMap("storage.collections") {
		key := "storage.collections." + name
		c.storage.Collections[name] = r.oneOf(key, FormatJSON, FormatCSV, FormatSQLite)
	}

	c.cacheDir = r.str("cache_dir")
	c.serverAddr = r.str("server.addr")
	c.rateLimit = r.integer("rate_limit")
	c.breaker = fallback.BreakerConfig{
		Threshold: uint32(r.integer("breaker.threshold")),
		Cooldown:  r.duration("breaker.cooldown"),
	}
	c.maxImageBytes = int64(r.integer("vision.max_image_bytes"))
	c.espeakBinary = r.str("tts.espeak.binary")
	c.ttsProvider = r.oneOf("tts.provider", "google", ProviderOpenAI)
	c.llmProvider = r.oneOf("recipe.llm", ProviderOpenAI, ProviderGemini)

	c.services[ServiceTranslation] = ServiceConfig{
		Name:    ServiceTranslation,
		Timeout: r.duration("translation.timeout"),
		Tiers: []TierConfig{
			r.tier(fallback.TierPrimary, ProviderGoogleTranslate, "translation.google"),
			{Tier: fallback.TierFallback, Provider: ProviderGlossary, Enabled: true},
		},
	}

	speechPrimary := r.tier(fallback.TierPrimary, ProviderGoogleTTS, "tts.google")
	if c.ttsProvider == ProviderOpenAI {
		speechPrimary = r.tier(fallback.TierPrimary, ProviderOpenAITTS, "tts.openai")
		speechPrimary.Voice = r.str("tts.openai.voice")
		speechPrimary.Speed = r.float("tts.openai.speed")
		speechPrimary.Instruction = r.str("tts.openai.instruction")
		if speechPrimary.Speed < 0.25 || speechPrimary.Speed > 4.0 {
			r.fail("tts.openai.speed", "must be between 0.25 and 4.0", nil)
		}
	}
	c.services[ServiceSpeech] = ServiceConfig{
		Name:    ServiceSpeech,
		Timeout: r.duration("tts.timeout"),
		Tiers: []TierConfig{
			speechPrimary,
			{Tier: fallback.TierFallback, Provider: ProviderLocalTTS, Enabled: true},
		},
	}

	azure := r.tier(fallback.TierSecondary, ProviderAzureVision, "vision.azure")
	azure.Enabled = azure.APIKey != "" && azure.Endpoint != ""
	c.services[ServiceVision] = ServiceConfig{
		Name:    ServiceVision,
		Timeout: r.duration("vision.timeout"),
		Tiers: []TierConfig{
			r.tier(fallback.TierPrimary, ProviderGoogleVision, "vision.google"),
			azure,
			{Tier: fallback.TierFallback, Provider: ProviderHeuristics, Enabled: true},
		},
	}

	llm := r.tier(fallback.TierSecondary, ProviderOpenAI, "recipe.openai")
	if c.llmProvider == ProviderGemini {
		llm = r.tier(fallback.TierSecondary, ProviderGemini, "recipe.gemini")
	}
	c.services[ServiceRecipe] = ServiceConfig{
		Name:    ServiceRecipe,
		Timeout: r.duration("recipe.timeout"),
		Tiers: []TierConfig{
			r.tier(fallback.TierPrimary, ProviderSpoonacular, "recipe.spoonacular"),
			llm,
			{Tier: fallback.TierFallback, Provider: ProviderTemplates, Enabled: true},
		},
	}

	return c
}

func (r *reader) tier(t fallback.Tier, provider, prefix string) TierConfig {
	tc := TierConfig{
		Tier:     t,
		Provider: provider,
		APIKey:   r.credential(prefix + ".api_key"),
		Endpoint: r.endpoint(prefix + ".endpoint"),
		Model:    r.str(prefix + ".model"),
	}
	if r.v.IsSet(prefix + ".base_url") {
		tc.Endpoint = r.endpoint(prefix + ".base_url")
	}
	tc.Enabled = tc.APIKey != ""
	return tc
}

// File returns the config file that was read, if any.
func (c *Config) File() string { return c.file }

// Log returns the logging options.
func (c *Config) Log() logging.Options { return c.log }

// Storage returns the persistence settings.
func (c *Config) Storage() StorageConfig {
	s := c.storage
	s.Collections = maps.Clone(c.storage.Collections)
	return s
}

// CacheDir is where synthesized audio is cached.
func (c *Config) CacheDir() string { return c.cacheDir }

// ServerAddr is the listen address of the HTTP API.
func (c *Config) ServerAddr() string { return c.serverAddr }

// RateLimit is the per-provider request budget per minute.
func (c *Config) RateLimit() int { return c.rateLimit }

// Breaker returns the circuit breaker settings shared by all chains.
func (c *Config) Breaker() fallback.BreakerConfig { return c.breaker }

// MaxImageBytes caps uploads to the vision service.
func (c *Config) MaxImageBytes() int64 { return c.maxImageBytes }

// EspeakBinary names the local speech synthesizer executable.
func (c *Config) EspeakBinary() string { return c.espeakBinary }

// Service returns the chain configuration for name.
func (c *Config) Service(name string) ServiceConfig {
	s := c.services[name]
	s.Tiers = slices.Clone(s.Tiers)
	return s
}

// Services returns the names of all configured chains.
func (c *Config) Services() []string {
	return slices.Sorted(maps.Keys(c.services))
}
