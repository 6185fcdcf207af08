package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBName     = "mdx_core"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultSiteName = "mdx-core"

	defaultAdminUsername = "admin"
	defaultAdminTokenTTL = 30 * 24 * time.Hour

	defaultGitHubBranch      = "main"
	defaultGitHubContentRoot = "content"

	defaultDirTTL         = time.Hour
	defaultPoolThreshold  = 64
	defaultPoolTTL        = 300 * time.Second
	defaultVotePoolTTL    = 30 * time.Second
	defaultCommentTTL     = 10 * time.Minute
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = 100 * time.Millisecond

	defaultMailProvider       = "http"
	defaultSMTPPort           = 465
	defaultNewsletterInterval = 10 * time.Minute
	defaultNewsletterBatch    = 50
	defaultNewsletterAttempts = 5

	defaultRateLimitMax    = 60
	defaultRateLimitWindow = time.Minute
)
