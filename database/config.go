package database

import (
	"github.com/icinga/icinga-redis-sync/config"
	"github.com/pkg/errors"
)

// Config defines database client configuration.
type Config struct {
	Type       string     `yaml:"type" env:"TYPE" default:"mysql"`
	Host       string     `yaml:"host" env:"HOST"`
	Port       int        `yaml:"port" env:"PORT"`
	Database   string     `yaml:"database" env:"DATABASE"`
	User       string     `yaml:"user" env:"USER"`
	Password   string     `yaml:"password" env:"PASSWORD,unset"` // #nosec G117 -- exported password field
	PasswordFile string   `yaml:"password_file" env:"PASSWORD_FILE"`
	TlsOptions config.TLS `yaml:",inline"`
	Options    Options    `yaml:"options" envPrefix:"OPTIONS_"`
}

// Validate checks constraints in the supplied database configuration and returns an error if they are violated.
func (c *Config) Validate() error {
	switch c.Type {
	case "mysql", "pgsql":
		if c.Host == "" {
			return errors.New("database host missing")
		}

		if c.User == "" {
			return errors.New("database user missing")
		}
	case SQLite:
		// A file path (or ":memory:") in Database is all a SQLite connection needs; there is no
		// separate server to authenticate against.
	default:
		return unknownDbType(c.Type)
	}

	if c.Database == "" {
		return errors.New("database name missing")
	}

	if err := config.LoadPasswordFile(&c.Password, c.PasswordFile); err != nil {
		return errors.Wrap(err, "can't load database password file")
	}

	return c.Options.Validate()
}

func unknownDbType(t string) error {
	return errors.Errorf(`unknown database type %q, must be one of: "mysql", "pgsql", "sqlite"`, t)
}
