package config

import "strings"

// orDefault trims v and falls back to def when nothing is left.
func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func normalizeDatabaseConfig(cfg DatabaseRuntimeConfig) DatabaseRuntimeConfig {
	cfg.Host = orDefault(cfg.Host, defaultDBHost)
	cfg.User = orDefault(cfg.User, defaultDBUser)
	cfg.Name = orDefault(cfg.Name, defaultDBName)
	cfg.Charset = orDefault(cfg.Charset, defaultDBCharset)
	cfg.Loc = orDefault(cfg.Loc, defaultDBLoc)
	if cfg.Port == 0 {
		cfg.Port = defaultDBPort
	}

	if len(cfg.Params) > 0 {
		params := make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
				params[k] = v
			}
		}
		cfg.Params = params
	}
	return cfg
}

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = redisURL(cfg.URL)
	cfg.Host = orDefault(cfg.Host, defaultRedisHost)
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	return cfg
}

// redisURL adds the redis:// scheme to bare host:port/db values.
func redisURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return "redis://" + raw
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	return strings.ToLower(orDefault(env, defaultEnv))
}
