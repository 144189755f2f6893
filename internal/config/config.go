package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/internal/logging"
)

// Backends
const (
	BackendInfisical = "infisical"
	BackendAWS       = "aws"
	BackendNone      = "none"
)

// Defaults
const (
	DefaultEnvironment     = "dev"
	DefaultSiteURL         = "https://app.infisical.com"
	DefaultCacheTTL        = 5 * time.Minute
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = time.Second
	DefaultInitTimeout     = 30 * time.Second
	DefaultProviderTimeout = 10 * time.Second
)

// Environment variables read by Load
const (
	EnvSiteURL           = "INFISICAL_SITE_URL"
	EnvClientID          = "INFISICAL_CLIENT_ID"
	EnvClientSecret      = "INFISICAL_CLIENT_SECRET"
	EnvEnvironment       = "INFISICAL_ENVIRONMENT"
	EnvProjectID         = "INFISICAL_PROJECT_ID"
	EnvSharedProjectID   = "INFISICAL_SHARED_PROJECT_ID"
	EnvGlobalProjectID   = "INFISICAL_GLOBAL_PROJECT_ID"
	EnvBackend           = "SECRETCHAIN_BACKEND"
	EnvCacheEnabled      = "SECRETCHAIN_CACHE_ENABLED"
	EnvCacheTTL          = "SECRETCHAIN_CACHE_TTL"
	EnvMaxRetries        = "SECRETCHAIN_MAX_RETRIES"
	EnvRetryDelay        = "SECRETCHAIN_RETRY_DELAY"
	EnvAWSRegion         = "AWS_REGION"
	EnvAWSEndpoint       = "SECRETCHAIN_AWS_ENDPOINT"
)

// envScopes lists the scope variables in priority order
var envScopes = []struct {
	env  string
	name string
}{
	{EnvProjectID, "project"},
	{EnvSharedProjectID, "shared"},
	{EnvGlobalProjectID, "global"},
}

//go:embed schema.json
var schemaJSON string

// Scope is one remote project queried during resolution
type Scope struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// InfisicalConfig holds machine identity settings
type InfisicalConfig struct {
	SiteURL            string
	ClientID           string
	ClientSecret       string
	CACert             string
	InsecureSkipVerify bool
}

// AWSConfig holds AWS Secrets Manager settings
type AWSConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ResolverConfig is the fully resolved configuration of a secret manager
type ResolverConfig struct {
	Backend         string
	Environment     string
	Scopes          []Scope
	CacheEnabled    bool
	CacheTTL        time.Duration
	MaxRetries      uint
	RetryDelay      time.Duration
	InitTimeout     time.Duration
	ProviderTimeout time.Duration
	Infisical       InfisicalConfig
	AWS             AWSConfig
}

// Default returns the built-in configuration: environment-only until
// credentials and scopes are supplied.
func Default() ResolverConfig {
	return ResolverConfig{
		Backend:         BackendInfisical,
		Environment:     DefaultEnvironment,
		CacheEnabled:    true,
		CacheTTL:        DefaultCacheTTL,
		MaxRetries:      DefaultMaxRetries,
		RetryDelay:      DefaultRetryDelay,
		InitTimeout:     DefaultInitTimeout,
		ProviderTimeout: DefaultProviderTimeout,
		Infisical: InfisicalConfig{
			SiteURL: DefaultSiteURL,
		},
	}
}

// Normalize enforces the invariants: at least one attempt, deduplicated
// non-empty scopes in their original order, a named scope for every id.
func (c ResolverConfig) Normalize() ResolverConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = 1
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = BackendInfisical
	}

	seen := make(map[string]bool, len(c.Scopes))
	scopes := make([]Scope, 0, len(c.Scopes))
	for _, s := range c.Scopes {
		s.ID = strings.TrimSpace(s.ID)
		if s.ID == "" || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		if s.Name == "" {
			s.Name = fmt.Sprintf("scope-%d", len(scopes)+1)
		}
		scopes = append(scopes, s)
	}
	c.Scopes = scopes
	return c
}

// ProviderConfigured reports whether enough credentials are present to
// contact the backend at all.
func (c ResolverConfig) ProviderConfigured() bool {
	switch c.Backend {
	case BackendInfisical:
		return c.Infisical.ClientID != "" && c.Infisical.ClientSecret != ""
	case BackendAWS:
		return c.AWS.Region != ""
	default:
		return false
	}
}

// Config holds the runtime configuration
type Config struct {
	// Path is an optional YAML file; empty means environment only
	Path   string
	Logger *logging.Logger
	// LookupEnv defaults to os.LookupEnv
	LookupEnv func(string) (string, bool)
	// SkipKeyring disables the OS keyring fallback for the client secret
	SkipKeyring bool

	Resolver ResolverConfig
}

// Load builds Resolver from defaults, the optional file, then the environment.
func (c *Config) Load() error {
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	lookup := c.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	rc := Default()

	if c.Path != "" {
		def, err := loadFile(c.Path)
		if err != nil {
			return err
		}
		if err := def.apply(&rc); err != nil {
			return err
		}
	}

	if err := applyEnv(&rc, lookup); err != nil {
		return err
	}

	if rc.Backend == BackendInfisical && !c.SkipKeyring &&
		rc.Infisical.ClientID != "" && rc.Infisical.ClientSecret == "" {
		secret, err := LookupClientSecret(rc.Infisical.ClientID)
		if err != nil {
			c.Logger.Debug("no keyring entry for client id %s: %v", rc.Infisical.ClientID, err)
		} else {
			rc.Infisical.ClientSecret = secret
		}
	}

	rc = rc.Normalize()

	switch rc.Backend {
	case BackendInfisical, BackendAWS, BackendNone:
	default:
		return dserrors.ConfigError{
			Field:      "backend",
			Value:      rc.Backend,
			Message:    "unsupported backend",
			Suggestion: "Use one of: infisical, aws, none",
		}
	}

	c.Resolver = rc
	return nil
}

// fileDefinition is the YAML layout of the config file
type fileDefinition struct {
	Backend     string  `yaml:"backend"`
	Environment string  `yaml:"environment"`
	Scopes      []Scope `yaml:"scopes"`
	Cache       struct {
		Enabled *bool  `yaml:"enabled"`
		TTL     string `yaml:"ttl"`
	} `yaml:"cache"`
	Retry struct {
		MaxRetries *uint  `yaml:"max_retries"`
		Delay      string `yaml:"delay"`
	} `yaml:"retry"`
	Timeouts struct {
		Init     string `yaml:"init"`
		Provider string `yaml:"provider"`
	} `yaml:"timeouts"`
	Infisical struct {
		SiteURL            string `yaml:"site_url"`
		ClientID           string `yaml:"client_id"`
		ClientSecret       string `yaml:"client_secret"`
		CACert             string `yaml:"ca_cert"`
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"infisical"`
	AWS struct {
		Region          string `yaml:"region"`
		Endpoint        string `yaml:"endpoint"`
		AccessKeyID     string `yaml:"access_key_id"`
		SecretAccessKey string `yaml:"secret_access_key"`
	} `yaml:"aws"`
}

func loadFile(path string) (*fileDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, dserrors.ConfigError{
				Field:      "path",
				Value:      path,
				Message:    "configuration file not found",
				Suggestion: "Create the file or omit --config to use environment variables only",
			}
		}
		return nil, dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}

	var def fileDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("invalid configuration: %v", err),
			Suggestion: "Check value types against the documented configuration layout",
		}
	}
	return &def, nil
}

// validateDocument checks the decoded YAML against the embedded JSON schema
func validateDocument(doc map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to validate configuration: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return dserrors.ConfigError{
		Field:      result.Errors()[0].Field(),
		Message:    "configuration does not match schema: " + strings.Join(problems, "; "),
		Suggestion: "Fix the listed fields; durations use Go syntax such as 30s or 5m",
	}
}

func (d *fileDefinition) apply(rc *ResolverConfig) error {
	if d.Backend != "" {
		rc.Backend = d.Backend
	}
	if d.Environment != "" {
		rc.Environment = d.Environment
	}
	if len(d.Scopes) > 0 {
		rc.Scopes = append([]Scope(nil), d.Scopes...)
	}
	if d.Cache.Enabled != nil {
		rc.CacheEnabled = *d.Cache.Enabled
	}
	if d.Retry.MaxRetries != nil {
		rc.MaxRetries = *d.Retry.MaxRetries
	}

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"cache.ttl", d.Cache.TTL, &rc.CacheTTL},
		{"retry.delay", d.Retry.Delay, &rc.RetryDelay},
		{"timeouts.init", d.Timeouts.Init, &rc.InitTimeout},
		{"timeouts.provider", d.Timeouts.Provider, &rc.ProviderTimeout},
	}
	for _, dur := range durations {
		if dur.raw == "" {
			continue
		}
		v, err := parseDuration(dur.field, dur.raw)
		if err != nil {
			return err
		}
		*dur.dst = v
	}

	if d.Infisical.SiteURL != "" {
		rc.Infisical.SiteURL = d.Infisical.SiteURL
	}
	if d.Infisical.ClientID != "" {
		rc.Infisical.ClientID = d.Infisical.ClientID
	}
	if d.Infisical.ClientSecret != "" {
		rc.Infisical.ClientSecret = d.Infisical.ClientSecret
	}
	rc.Infisical.CACert = d.Infisical.CACert
	rc.Infisical.InsecureSkipVerify = d.Infisical.InsecureSkipVerify

	rc.AWS = AWSConfig{
		Region:          d.AWS.Region,
		Endpoint:        d.AWS.Endpoint,
		AccessKeyID:     d.AWS.AccessKeyID,
		SecretAccessKey: d.AWS.SecretAccessKey,
	}
	return nil
}

// applyEnv overlays environment variables. Scope ids found in the
// environment take priority over scopes from the file.
func applyEnv(rc *ResolverConfig, lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	if v := get(EnvBackend); v != "" {
		rc.Backend = v
	}
	if v := get(EnvEnvironment); v != "" {
		rc.Environment = v
	}
	if v := get(EnvSiteURL); v != "" {
		rc.Infisical.SiteURL = v
	}
	if v := get(EnvClientID); v != "" {
		rc.Infisical.ClientID = v
	}
	if v := get(EnvClientSecret); v != "" {
		rc.Infisical.ClientSecret = v
	}
	if v := get(EnvAWSRegion); v != "" {
		rc.AWS.Region = v
	}
	if v := get(EnvAWSEndpoint); v != "" {
		rc.AWS.Endpoint = v
	}

	var scopes []Scope
	for _, s := range envScopes {
		if id := get(s.env); id != "" {
			scopes = append(scopes, Scope{ID: id, Name: s.name})
		}
	}
	if len(scopes) > 0 {
		rc.Scopes = append(scopes, rc.Scopes...)
	}

	if v := get(EnvCacheEnabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return dserrors.ConfigError{
				Field:      EnvCacheEnabled,
				Value:      v,
				Message:    "not a boolean",
				Suggestion: "Use true or false",
			}
		}
		rc.CacheEnabled = b
	}
	if v := get(EnvCacheTTL); v != "" {
		d, err := parseDuration(EnvCacheTTL, v)
		if err != nil {
			return err
		}
		rc.CacheTTL = d
	}
	if v := get(EnvMaxRetries); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return dserrors.ConfigError{
				Field:      EnvMaxRetries,
				Value:      v,
				Message:    "not a non-negative integer",
				Suggestion: "Use a number such as 3",
			}
		}
		rc.MaxRetries = uint(n)
	}
	if v := get(EnvRetryDelay); v != "" {
		d, err := parseDuration(EnvRetryDelay, v)
		if err != nil {
			return err
		}
		rc.RetryDelay = d
	}
	return nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, dserrors.ConfigError{
			Field:      field,
			Value:      raw,
			Message:    "invalid duration",
			Suggestion: "Use Go duration syntax such as 500ms, 30s or 5m",
		}
	}
	return d, nil
}
