package mail

import (
	"github.com/mx-space/mdx-core/internal/config"
)

// BuildMailConfig maps the application config onto a sender Config.
func BuildMailConfig(cfg *config.AppConfig) Config {
	if cfg == nil {
		return Config{}
	}
	m := cfg.Mail
	return Config{
		Enable:   m.Enable,
		Provider: m.Provider,
		Endpoint: m.Endpoint,
		Domain:   m.Domain,
		APIKey:   m.APIKey,
		From:     m.From,
		Host:     m.SMTP.Host,
		Port:     m.SMTP.Port,
		User:     m.SMTP.User,
		Pass:     m.SMTP.Pass,
	}
}
