package config

import (
	"net"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSNValue builds a go-sql-driver DSN unless one was given verbatim.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Name
	mc.ParseTime = c.ParseTime
	if loc, err := time.LoadLocation(c.Loc); err == nil {
		mc.Loc = loc
	}

	params := map[string]string{"charset": c.Charset}
	for key, value := range c.Params {
		params[key] = value
	}
	mc.Params = params
	return mc.FormatDSN()
}

func (c RedisRuntimeConfig) URLValue() string {
	if u := redisURL(c.URL); u != "" {
		return u
	}

	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}
	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strconv.Itoa(c.DB),
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = neturl.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = neturl.User(c.Username)
	case c.Password != "":
		u.User = neturl.UserPassword("", c.Password)
	}
	return u.String()
}
