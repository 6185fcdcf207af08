package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML config at configPath. A .env file in the working
// directory is loaded first and ${VAR} references in the YAML are expanded
// from the environment, so secrets can stay out of the file.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	_ = godotenv.Load()

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	cfg, err := Parse(content, path)
	if err != nil {
		return nil, err
	}
	cfg.baseDir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes config content. name is only used in error messages.
func Parse(content []byte, name string) (*AppConfig, error) {
	expanded := os.ExpandEnv(string(content))

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %q: %w", name, err)
	}

	applyRawAppConfig(&cfg, raw)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", name, err)
	}
	return &cfg, nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == "development" || c.Env == "dev" }

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Site: SiteConfig{Name: defaultSiteName},
		Admin: AdminConfig{
			Username: defaultAdminUsername,
			TokenTTL: defaultAdminTokenTTL,
		},
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		GitHub: GitHubConfig{
			Branch:      defaultGitHubBranch,
			ContentRoot: defaultGitHubContentRoot,
		},
		Cache: CacheConfig{
			DirTTL:         defaultDirTTL,
			PoolThreshold:  defaultPoolThreshold,
			PoolTTL:        defaultPoolTTL,
			VotePoolTTL:    defaultVotePoolTTL,
			CommentTTL:     defaultCommentTTL,
			RetryAttempts:  defaultRetryAttempts,
			RetryBaseDelay: defaultRetryBaseDelay,
		},
		Mail: MailConfig{
			Provider: defaultMailProvider,
			SMTP:     SMTPConfig{Port: defaultSMTPPort, Secure: true},
		},
		Newsletter: NewsletterConfig{
			Interval:    defaultNewsletterInterval,
			BatchSize:   defaultNewsletterBatch,
			MaxAttempts: defaultNewsletterAttempts,
		},
		RateLimit: RateLimitConfig{
			Max:    defaultRateLimitMax,
			Window: defaultRateLimitWindow,
		},
	}
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}
	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if v := strings.TrimSpace(raw.Paths.Logs); v != "" {
		cfg.Paths.Logs = v
	}

	if v := strings.TrimRight(strings.TrimSpace(raw.Site.URL), "/"); v != "" {
		cfg.Site.URL = v
	}
	if v := strings.TrimSpace(raw.Site.Name); v != "" {
		cfg.Site.Name = v
	}
	cfg.Site.Description = strings.TrimSpace(raw.Site.Description)

	if v := strings.TrimSpace(raw.Admin.Username); v != "" {
		cfg.Admin.Username = v
	}
	cfg.Admin.PasswordHash = strings.TrimSpace(raw.Admin.PasswordHash)
	if raw.Admin.TokenTTL != nil && *raw.Admin.TokenTTL > 0 {
		cfg.Admin.TokenTTL = *raw.Admin.TokenTTL
	}

	cfg.Database = applyRawDatabaseConfig(cfg.Database, raw)
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)
	cfg.GitHub = applyRawGitHubConfig(cfg.GitHub, raw.GitHub)
	cfg.Cache = applyRawCacheConfig(cfg.Cache, raw.Cache)
	cfg.Mail = applyRawMailConfig(cfg.Mail, raw.Mail)
	cfg.Newsletter = applyRawNewsletterConfig(cfg.Newsletter, raw.Newsletter)
	if cfg.Newsletter.SiteURL == "" {
		cfg.Newsletter.SiteURL = cfg.Site.URL
	}

	if raw.RateLimit.Max != 0 {
		cfg.RateLimit.Max = raw.RateLimit.Max
	}
	if raw.RateLimit.Window != nil {
		cfg.RateLimit.Window = *raw.RateLimit.Window
	}

	cfg.Env = normalizeEnv(cfg.Env)
	cfg.Database = normalizeDatabaseConfig(cfg.Database)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	if cfg.Database.Enabled {
		cfg.DSN = cfg.Database.DSNValue()
	}
	if cfg.Redis.Enabled {
		cfg.RedisURL = cfg.Redis.URLValue()
	}
}

func applyRawDatabaseConfig(cfg DatabaseRuntimeConfig, raw rawAppConfig) DatabaseRuntimeConfig {
	if v := strings.TrimSpace(raw.DSN); v != "" {
		cfg.Enabled = true
		cfg.DSN = v
	}
	db := raw.Database
	if db == nil {
		return cfg
	}
	cfg.Enabled = true
	if v := strings.TrimSpace(db.DSN); v != "" {
		cfg.DSN = v
	}
	if v := strings.TrimSpace(db.Host); v != "" {
		cfg.Host = v
	}
	if db.Port != 0 {
		cfg.Port = db.Port
	}
	if v := strings.TrimSpace(db.User); v != "" {
		cfg.User = v
	} else if v := strings.TrimSpace(db.Username); v != "" {
		cfg.User = v
	}
	if db.Password != "" {
		cfg.Password = db.Password
	}
	if v := strings.TrimSpace(db.Name); v != "" {
		cfg.Name = v
	} else if v := strings.TrimSpace(db.DBName); v != "" {
		cfg.Name = v
	}
	if v := strings.TrimSpace(db.Charset); v != "" {
		cfg.Charset = v
	}
	if db.ParseTime != nil {
		cfg.ParseTime = *db.ParseTime
	}
	if v := strings.TrimSpace(db.Loc); v != "" {
		cfg.Loc = v
	}
	if db.Params != nil {
		cfg.Params = db.Params
	}
	return cfg
}

func applyRawRedisConfig(cfg RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.Enabled = true
		cfg.URL = v
	}
	r := raw.Redis
	if r == nil {
		return cfg
	}
	cfg.Enabled = true
	if v := strings.TrimSpace(r.URL); v != "" {
		cfg.URL = v
	}
	if v := strings.TrimSpace(r.Host); v != "" {
		cfg.Host = v
	}
	if r.Port != 0 {
		cfg.Port = r.Port
	}
	if v := strings.TrimSpace(r.Username); v != "" {
		cfg.Username = v
	}
	if r.Password != "" {
		cfg.Password = r.Password
	}
	if r.DB != nil {
		cfg.DB = *r.DB
	}
	if r.TLS != nil {
		cfg.TLS = *r.TLS
	}
	return cfg
}

func applyRawGitHubConfig(cfg GitHubConfig, raw rawGitHubConfig) GitHubConfig {
	if v := strings.TrimSpace(raw.Token); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(raw.Owner); v != "" {
		cfg.Owner = v
	}
	if v := strings.TrimSpace(raw.Repo); v != "" {
		cfg.Repo = v
	}
	if v := strings.TrimSpace(raw.Branch); v != "" {
		cfg.Branch = v
	}
	if v := strings.Trim(strings.TrimSpace(raw.ContentRoot), "/"); v != "" {
		cfg.ContentRoot = v
	}
	if v := strings.TrimSpace(raw.APIBaseURL); v != "" {
		cfg.APIBaseURL = v
	}
	return cfg
}

func applyRawCacheConfig(cfg CacheConfig, raw rawCacheConfig) CacheConfig {
	if raw.DirTTL != nil {
		cfg.DirTTL = *raw.DirTTL
	}
	if raw.PoolThreshold != 0 {
		cfg.PoolThreshold = raw.PoolThreshold
	}
	if raw.PoolTTL != nil {
		cfg.PoolTTL = *raw.PoolTTL
	}
	if raw.VotePoolTTL != nil {
		cfg.VotePoolTTL = *raw.VotePoolTTL
	}
	if raw.CommentTTL != nil {
		cfg.CommentTTL = *raw.CommentTTL
	}
	if raw.RetryAttempts != 0 {
		cfg.RetryAttempts = raw.RetryAttempts
	}
	if raw.RetryBaseDelay != nil {
		cfg.RetryBaseDelay = *raw.RetryBaseDelay
	}
	return cfg
}

func applyRawMailConfig(cfg MailConfig, raw rawMailConfig) MailConfig {
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if v := strings.ToLower(strings.TrimSpace(raw.Provider)); v != "" {
		cfg.Provider = v
	}
	if v := strings.TrimRight(strings.TrimSpace(raw.Endpoint), "/"); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(raw.Domain); v != "" {
		cfg.Domain = v
	}
	if v := strings.TrimSpace(raw.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(raw.From); v != "" {
		cfg.From = v
	}
	if v := strings.TrimSpace(raw.SMTP.Host); v != "" {
		cfg.SMTP.Host = v
	}
	if raw.SMTP.Port != 0 {
		cfg.SMTP.Port = raw.SMTP.Port
	}
	if v := strings.TrimSpace(raw.SMTP.User); v != "" {
		cfg.SMTP.User = v
	}
	if raw.SMTP.Pass != "" {
		cfg.SMTP.Pass = raw.SMTP.Pass
	}
	if raw.SMTP.Secure != nil {
		cfg.SMTP.Secure = *raw.SMTP.Secure
	}
	return cfg
}

func applyRawNewsletterConfig(cfg NewsletterConfig, raw rawNewsletterConfig) NewsletterConfig {
	if raw.Enable != nil {
		cfg.Enable = *raw.Enable
	}
	if raw.Interval != nil {
		cfg.Interval = *raw.Interval
	}
	if raw.BatchSize != 0 {
		cfg.BatchSize = raw.BatchSize
	}
	if raw.MaxAttempts > 0 {
		cfg.MaxAttempts = raw.MaxAttempts
	}
	if v := strings.TrimRight(strings.TrimSpace(raw.SiteURL), "/"); v != "" {
		cfg.SiteURL = v
	}
	return cfg
}

func validate(cfg *AppConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if cfg.Database.Enabled && cfg.Database.DSN == "" && (cfg.Database.Port < 1 || cfg.Database.Port > 65535) {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", cfg.Database.Port)
	}
	if cfg.Redis.Enabled && cfg.Redis.URL == "" && (cfg.Redis.Port < 1 || cfg.Redis.Port > 65535) {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", cfg.Redis.Port)
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", cfg.Redis.DB)
	}
	if cfg.GitHub.Token == "" {
		return fmt.Errorf("github.token is required")
	}
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		return fmt.Errorf("github.owner and github.repo are required")
	}

	durations := map[string]int64{
		"cache.dir_ttl":          int64(cfg.Cache.DirTTL),
		"cache.pool_ttl":         int64(cfg.Cache.PoolTTL),
		"cache.vote_pool_ttl":    int64(cfg.Cache.VotePoolTTL),
		"cache.comment_ttl":      int64(cfg.Cache.CommentTTL),
		"cache.retry_base_delay": int64(cfg.Cache.RetryBaseDelay),
		"newsletter.interval":    int64(cfg.Newsletter.Interval),
		"rate_limit.window":      int64(cfg.RateLimit.Window),
	}
	for key, d := range durations {
		if d < 0 {
			return fmt.Errorf("invalid %s, expected a non-negative duration", key)
		}
	}
	if cfg.Cache.PoolThreshold < 1 {
		return fmt.Errorf("invalid cache.pool_threshold %d, expected >= 1", cfg.Cache.PoolThreshold)
	}
	if cfg.Cache.RetryAttempts < 1 {
		return fmt.Errorf("invalid cache.retry_attempts %d, expected >= 1", cfg.Cache.RetryAttempts)
	}
	if cfg.Mail.Provider != "http" && cfg.Mail.Provider != "smtp" {
		return fmt.Errorf("invalid mail.provider %q, expected http or smtp", cfg.Mail.Provider)
	}
	if cfg.Mail.Enable && cfg.Mail.From == "" {
		return fmt.Errorf("mail.from is required when mail is enabled")
	}
	return nil
}
