package mainboilerplate

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.ircservices.dev/core/bridge"
	"go.ircservices.dev/core/provider"
	"go.ircservices.dev/core/provider/postgres"
	"go.ircservices.dev/core/provider/sqlite"
	"go.ircservices.dev/core/serialize"
)

// DatabaseConfig configures the database engines available to the Bridge,
// and the Bridge's binding to one of them.
type DatabaseConfig struct {
	bridge.Config
	SQLite   string `long:"sqlite" env:"SQLITE" default:"services.db" description:"Path of the SQLite database file. Empty disables the sqlite engine"`
	Postgres string `long:"postgres" env:"POSTGRES" description:"PostgreSQL connection string. Empty disables the postgres engine"`
}

// Databases are opened database engines, registered with a Directory.
type Databases struct {
	*provider.Directory
	closers []io.Closer
}

// OpenDatabases opens each configured engine and registers it with a
// new Directory. Engines other than the bound Engine are opened too, so
// that a reconfiguration may switch between them.
func (cfg DatabaseConfig) OpenDatabases(ctx context.Context) (*Databases, error) {
	var out = &Databases{Directory: provider.NewDirectory()}

	var add = func(name string, db *provider.DB, err error) error {
		if err != nil {
			return errors.WithMessagef(err, "opening %s engine", name)
		}
		out.Register(name, db)
		out.closers = append(out.closers, db)
		log.WithField("engine", name).Debug("opened database engine")
		return nil
	}

	if cfg.SQLite != "" {
		var db, err = sqlite.Open(ctx, cfg.SQLite)
		if err = add(sqlite.EngineName, db, err); err != nil {
			out.Close()
			return nil, err
		}
	}
	if cfg.Postgres != "" {
		var db, err = postgres.Open(ctx, cfg.Postgres)
		if err = add(postgres.EngineName, db, err); err != nil {
			out.Close()
			return nil, err
		}
	}
	return out, nil
}

// Close all opened engines.
func (d *Databases) Close() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			log.WithField("err", err).Warn("failed to close database engine")
		}
	}
	d.closers = nil
}

// TypesConfig configures serializable Types beyond those built in.
type TypesConfig struct {
	Path string `long:"path" env:"FILE" description:"Path of a YAML file of additional Types and Fields"`
}

// LoadTypes loads the configured Types file, if any, into the Registry.
func (cfg TypesConfig) LoadTypes(reg *serialize.Registry) error {
	if cfg.Path == "" {
		return nil
	}
	var f, err = os.Open(cfg.Path)
	if err != nil {
		return errors.WithMessage(err, "opening types")
	}
	defer f.Close()

	if err = serialize.LoadTypes(f, reg); err != nil {
		return errors.WithMessagef(err, "loading types from %s", cfg.Path)
	}
	return nil
}
