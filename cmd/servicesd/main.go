package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	"go.ircservices.dev/core/bridge"
	"go.ircservices.dev/core/cycle"
	mbp "go.ircservices.dev/core/mainboilerplate"
	"go.ircservices.dev/core/memcache"
	"go.ircservices.dev/core/metrics"
	"go.ircservices.dev/core/serialize"
	"go.ircservices.dev/core/services"
	"go.ircservices.dev/core/task"
)

const iniFilename = "servicesd.ini"

// Config is the top-level configuration object of the services daemon.
var Config = new(struct {
	Services struct {
		mbp.ServiceConfig
		Backlog       int           `long:"backlog" env:"BACKLOG" default:"1024" description:"Number of work items which may be queued to the processing loop"`
		StatsInterval time.Duration `long:"stats-interval" env:"STATS_INTERVAL" default:"1m" description:"Interval at which object gauges are refreshed"`
		Bots          []string      `long:"bot" env:"BOTS" env-delim:"," description:"Nick of a service bot which is created if it doesn't exist. May be repeated"`
	} `group:"Services" namespace:"services" env-namespace:"SERVICES"`

	Cache struct {
		Size int           `long:"size" env:"SIZE" default:"4096" description:"Number of field values held by the object cache. Zero disables the cache"`
		TTL  time.Duration `long:"ttl" env:"TTL" default:"1h" description:"Duration after which cached field values are re-read. Zero never expires them"`
	} `group:"Cache" namespace:"cache" env-namespace:"CACHE"`

	Types       mbp.TypesConfig       `group:"Types" namespace:"types" env-namespace:"TYPES"`
	Database    mbp.DatabaseConfig    `group:"Database" namespace:"database" env-namespace:"DATABASE"`
	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
})

var parser = flags.NewParser(Config, flags.Default)

type serveServices struct{}

func (serveServices) Execute(args []string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics, metrics.ServicesCollectors()...)()
	var logger = mbp.InitLog(Config.Log, Config.Services.InstanceName())

	logger.WithField("config", Config).Info("starting services")

	var reg = serialize.NewRegistry()
	mbp.Must(services.RegisterTypes(reg), "registering types")
	mbp.Must(Config.Types.LoadTypes(reg), "loading types")

	var dbs, err = Config.Database.OpenDatabases(context.Background())
	mbp.Must(err, "opening databases")
	defer dbs.Close()

	var loop = cycle.NewLoop(Config.Services.Backlog)
	var b = bridge.New(reg, dbs.Directory, loop)

	var chain = serialize.Chain{b}
	var cache *memcache.Cache
	if Config.Cache.Size > 0 {
		cache = memcache.New(Config.Cache.Size, Config.Cache.TTL)
		chain = serialize.Chain{cache, b}

		// Cached values may have been rolled back.
		b.OnCommitFailure(func(error) { cache.Purge() })
	}
	var objs = serialize.NewObjects(reg, chain)
	svc, err := services.New(objs)
	mbp.Must(err, "building services")

	loop.Post(func() {
		b.Reconfigure(Config.Database.Config)
		ensureBots(svc, Config.Services.Bots)
	})

	var tasks = task.NewGroup(context.Background())

	tasks.Queue("loop.Run", loop.Run)
	tasks.Queue("signals", func(ctx context.Context) error {
		return watchSignals(ctx, tasks, loop, b, cache)
	})
	tasks.Queue("stats", func(ctx context.Context) error {
		return refreshStats(ctx, loop, reg, b)
	})

	tasks.GoRun()

	// Block until all tasks complete. Assert none returned an error.
	mbp.Must(tasks.Wait(), "services task failed")

	if err = b.CommitErr(); err != nil {
		logger.WithField("err", err).Warn("last commit failed")
	}
	logger.Info("goodbye")
	return nil
}

// ensureBots creates configured bots which don't yet exist.
func ensureBots(svc *services.Services, nicks []string) {
	for _, nick := range nicks {
		if _, ok, err := svc.FindBot(nick); err != nil {
			log.WithFields(log.Fields{"bot": nick, "err": err}).Error("failed to find bot")
		} else if ok {
			continue
		} else if _, err = svc.CreateBot(nick, "services", "services.host", nick); err != nil {
			log.WithFields(log.Fields{"bot": nick, "err": err}).Error("failed to create bot")
		} else {
			log.WithField("bot", nick).Info("created bot")
		}
	}
}

// rereadDatabaseConfig parses the database binding from the configuration
// file and environment into a fresh value, leaving |Config| untouched.
func rereadDatabaseConfig() (bridge.Config, string, error) {
	var fresh = new(struct {
		Database mbp.DatabaseConfig `group:"Database" namespace:"database" env-namespace:"DATABASE"`
	})
	var p = flags.NewParser(fresh, flags.None)

	var path, err = mbp.ParseConfigFile(p, iniFilename)
	if err != nil {
		return bridge.Config{}, "", err
	} else if _, err = p.ParseArgs(nil); err != nil {
		return bridge.Config{}, "", err
	}
	return fresh.Database.Config, path, nil
}

// watchSignals cancels |tasks| on SIGTERM or SIGINT. On SIGHUP, it re-reads
// the database binding and reconfigures the Bridge from the loop.
func watchSignals(ctx context.Context, tasks *task.Group, loop *cycle.Loop, b *bridge.Bridge, cache *memcache.Cache) error {
	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(signalCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-signalCh:
			if sig != syscall.SIGHUP {
				log.WithField("signal", sig).Info("caught signal")
				tasks.Cancel()
				return nil
			}

			var cfg, path, err = rereadDatabaseConfig()
			if err != nil {
				log.WithField("err", err).Error("failed to re-read configuration")
				continue
			}
			log.WithFields(log.Fields{"path": path, "engine": cfg.Engine, "prefix": cfg.Prefix}).
				Info("re-read configuration")

			loop.Post(func() {
				if cache != nil {
					cache.Purge()
				}
				b.Reconfigure(cfg)
			})
		}
	}
}

// refreshStats periodically updates gauges of stored and live objects.
func refreshStats(ctx context.Context, loop *cycle.Loop, reg *serialize.Registry, b *bridge.Bridge) error {
	var ticker = time.NewTicker(Config.Services.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		loop.Post(func() {
			for _, t := range reg.Types() {
				metrics.LiveObjects.WithLabelValues(t.Name()).Set(float64(t.Live()))

				if res := b.ListIDs(t); res.Handled() {
					metrics.StoredObjects.WithLabelValues(t.Name()).Set(float64(len(res.Value)))
				}
			}
		})
	}
}

func main() {
	_, _ = parser.AddCommand("serve", "Serve as the services daemon", `
Serve the services daemon with the provided configuration, until signaled to
exit (via SIGTERM or SIGINT). SIGHUP re-reads `+iniFilename+` and rebinds the
database engine, committing outstanding writes first. Only database.engine and
database.prefix are rebound: other settings, including database.sqlite and
database.postgres, take effect upon restart.

Keys of `+iniFilename+` are namespaced by their section, for example:

  [Database]
  database.engine = postgres
  database.prefix = anope_
`, &serveServices{})

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
