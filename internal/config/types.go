package config

import "time"

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int
	Env            string // "development" | "production"
	Timezone       string
	AllowedOrigins []string
	JWTSecret      string
	Paths          RuntimePathsConfig
	Site           SiteConfig
	Admin          AdminConfig

	Database   DatabaseRuntimeConfig
	Redis      RedisRuntimeConfig
	GitHub     GitHubConfig
	Cache      CacheConfig
	Mail       MailConfig
	Newsletter NewsletterConfig
	RateLimit  RateLimitConfig

	// DSN is derived from Database.
	DSN string
	// RedisURL is derived from Redis.
	RedisURL string

	// baseDir is the directory of the loaded file, empty for Parse.
	baseDir string
}

type DatabaseRuntimeConfig struct {
	// Enabled is false when the file has no database section.
	Enabled   bool
	DSN       string
	Host      string
	Port      int
	User      string
	Password  string
	Name      string
	Charset   string
	ParseTime bool
	Loc       string
	Params    map[string]string
}

type RedisRuntimeConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     int
	Username string
	Password string
	DB       int
	TLS      bool
}

type GitHubConfig struct {
	Token       string
	Owner       string
	Repo        string
	Branch      string
	ContentRoot string
	APIBaseURL  string
}

type CacheConfig struct {
	DirTTL         time.Duration
	PoolThreshold  int
	PoolTTL        time.Duration
	VotePoolTTL    time.Duration
	CommentTTL     time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

type MailConfig struct {
	Enable   bool
	Provider string // "http" | "smtp"
	Endpoint string
	Domain   string
	APIKey   string
	From     string
	SMTP     SMTPConfig
}

type SMTPConfig struct {
	Host   string
	Port   int
	User   string
	Pass   string
	Secure bool
}

type NewsletterConfig struct {
	Enable    bool
	Interval  time.Duration
	BatchSize int
	// MaxAttempts bounds the runs an entry may fail before it is marked failed.
	MaxAttempts int
	// SiteURL prefixes article links in mails.
	SiteURL string
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// AdminConfig is the single owner allowed to log in. PasswordHash is a
// bcrypt hash; login is disabled while it is empty. The file is env-expanded,
// so the hash is normally given as ${ADMIN_PASSWORD_HASH}.
type AdminConfig struct {
	Username     string
	PasswordHash string
	TokenTTL     time.Duration
}

// SiteConfig describes the public blog for links, feeds and mails.
type SiteConfig struct {
	URL         string
	Name        string
	Description string
}

type RuntimePathsConfig struct {
	Logs string
}

type rawAppConfig struct {
	Port               int                 `yaml:"port"`
	Env                string              `yaml:"env"`
	Timezone           string              `yaml:"timezone"`
	TZ                 string              `yaml:"tz"`
	AllowedOrigins     []string            `yaml:"allowed_origins"`
	CORSAllowedOrigins []string            `yaml:"cors_allowed_origins"`
	JWTSecret          string              `yaml:"jwt_secret"`
	Paths              rawPathsConfig      `yaml:"paths"`
	Site               rawSiteConfig       `yaml:"site"`
	Admin              rawAdminConfig      `yaml:"admin"`
	DSN                string              `yaml:"dsn"`
	RedisURL           string              `yaml:"redis_url"`
	Database           *rawDatabaseConfig  `yaml:"database"`
	Redis              *rawRedisConfig     `yaml:"redis"`
	GitHub             rawGitHubConfig     `yaml:"github"`
	Cache              rawCacheConfig      `yaml:"cache"`
	Mail               rawMailConfig       `yaml:"mail"`
	Newsletter         rawNewsletterConfig `yaml:"newsletter"`
	RateLimit          rawRateLimitConfig  `yaml:"rate_limit"`
}

type rawAdminConfig struct {
	Username     string         `yaml:"username"`
	PasswordHash string         `yaml:"password_hash"`
	TokenTTL     *time.Duration `yaml:"token_ttl"`
}

type rawSiteConfig struct {
	URL         string `yaml:"url"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type rawPathsConfig struct {
	Logs string `yaml:"logs"`
}

type rawDatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime *bool             `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

type rawGitHubConfig struct {
	Token       string `yaml:"token"`
	Owner       string `yaml:"owner"`
	Repo        string `yaml:"repo"`
	Branch      string `yaml:"branch"`
	ContentRoot string `yaml:"content_root"`
	APIBaseURL  string `yaml:"api_base_url"`
}

type rawCacheConfig struct {
	DirTTL         *time.Duration `yaml:"dir_ttl"`
	PoolThreshold  int            `yaml:"pool_threshold"`
	PoolTTL        *time.Duration `yaml:"pool_ttl"`
	VotePoolTTL    *time.Duration `yaml:"vote_pool_ttl"`
	CommentTTL     *time.Duration `yaml:"comment_ttl"`
	RetryAttempts  int            `yaml:"retry_attempts"`
	RetryBaseDelay *time.Duration `yaml:"retry_base_delay"`
}

type rawMailConfig struct {
	Enable   *bool         `yaml:"enable"`
	Provider string        `yaml:"provider"`
	Endpoint string        `yaml:"endpoint"`
	Domain   string        `yaml:"domain"`
	APIKey   string        `yaml:"api_key"`
	From     string        `yaml:"from"`
	SMTP     rawSMTPConfig `yaml:"smtp"`
}

type rawSMTPConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	User   string `yaml:"user"`
	Pass   string `yaml:"pass"`
	Secure *bool  `yaml:"secure"`
}

type rawNewsletterConfig struct {
	Enable      *bool          `yaml:"enable"`
	Interval    *time.Duration `yaml:"interval"`
	BatchSize   int            `yaml:"batch_size"`
	MaxAttempts int            `yaml:"max_attempts"`
	SiteURL     string         `yaml:"site_url"`
}

type rawRateLimitConfig struct {
	Max    int            `yaml:"max"`
	Window *time.Duration `yaml:"window"`
}
