package postgres

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds the connection parameters for the catalogue database.
type Config struct {
	Host           string        `yaml:"host" validate:"required" usage:"Database server address"`
	Port           int           `yaml:"port" validate:"required" usage:"Database server TCP port"`
	Database       string        `yaml:"database" validate:"required" usage:"Database name"`
	User           string        `yaml:"user" validate:"required" usage:"Database user"`
	Password       string        `yaml:"password" validate:"required" usage:"Database password"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"5s" usage:"Timeout for opening a connection"`
}

// Target returns host:port/database, suitable for logs and errors.
func (c Config) Target() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port)) + "/" + c.Database
}

// URL returns the connection string understood by pgx.
func (c Config) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.ConnectTimeout > 0 {
		secs := int(c.ConnectTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		u.RawQuery = url.Values{"connect_timeout": {strconv.Itoa(secs)}}.Encode()
	}
	return u.String()
}
