package mainboilerplate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.ircservices.dev/core/provider"
	"go.ircservices.dev/core/serialize"
)

type noopCmd struct {
	Flag string `long:"flag"`
}

func (noopCmd) Execute([]string) error { return nil }

func TestCommandRegistryBuildsTree(t *testing.T) {
	var cr = NewCommandRegistry()
	cr.AddCommand("", "channel", "Channel commands", "", &struct{}{})
	cr.AddCommand("channel", "forbid", "Forbid a channel", "", &noopCmd{})
	cr.AddCommand("channel", "info", "Describe a channel", "", &noopCmd{})

	var parser = flags.NewParser(nil, flags.None)
	require.NoError(t, cr.AddCommands("", parser.Command, true))

	var ch = parser.Find("channel")
	require.NotNil(t, ch)
	assert.NotNil(t, ch.Find("forbid"))
	assert.NotNil(t, ch.Find("info"))

	// Without recursion, only direct children are added.
	parser = flags.NewParser(nil, flags.None)
	require.NoError(t, cr.AddCommands("", parser.Command, false))
	assert.Empty(t, parser.Find("channel").Commands())
}

func TestParseConfigFile(t *testing.T) {
	var dir = t.TempDir()
	t.Setenv("APPLICATION_CONFIG_ROOT", dir)

	var cfg struct {
		Database struct {
			Engine string `long:"engine" default:"sqlite"`
		} `group:"Database" namespace:"database"`
	}
	var parser = flags.NewParser(&cfg, flags.Default)

	path, err := ParseConfigFile(parser, "missing.ini")
	assert.NoError(t, err)
	assert.Equal(t, "", path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.ini"),
		[]byte("[Database]\ndatabase.engine = postgres\nunknown = ignored\n"), 0600))

	path, err = ParseConfigFile(parser, "test.ini")
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "test.ini"), path)
	assert.Equal(t, "postgres", cfg.Database.Engine)
	assert.Equal(t, flags.Options(flags.Default), parser.Options)
}

func TestInstanceName(t *testing.T) {
	assert.Equal(t, "services-a", ServiceConfig{Name: "services-a"}.InstanceName())

	var generated = ServiceConfig{}.InstanceName()
	assert.NotEmpty(t, generated)
	assert.True(t, strings.Count(generated, "-") >= 1)
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil, "ok") })
	assert.Panics(t, func() { Must(os.ErrNotExist, "failed", "path", "/tmp/x") })
}

func TestOpenDatabases(t *testing.T) {
	var cfg = DatabaseConfig{SQLite: filepath.Join(t.TempDir(), "services.db")}

	var dbs, err = cfg.OpenDatabases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"sqlite"}, dbs.Names())

	var p, ok = dbs.Lookup("sqlite")
	require.True(t, ok)
	assert.NoError(t, p.RunQuery(provider.NewQuery("SELECT 1")).Err)

	dbs.Close()
	dbs.Close() // Idempotent.

	// No engines configured.
	dbs, err = DatabaseConfig{}.OpenDatabases(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dbs.Names())
}

func TestLoadTypesConfig(t *testing.T) {
	var reg = serialize.NewRegistry()
	reg.MustRegister("Account", serialize.Field{Name: "display"})

	// No path configured.
	assert.NoError(t, TypesConfig{}.LoadTypes(reg))

	var path = filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
types:
  - name: Memo
    fields:
      - name: receiver
        ref: Account
      - name: text
`), 0600))

	require.NoError(t, TypesConfig{Path: path}.LoadTypes(reg))
	require.NotNil(t, reg.Type("Memo"))
	assert.True(t, reg.Type("Memo").Field("receiver").IsReference())

	assert.Error(t, TypesConfig{Path: path + ".missing"}.LoadTypes(reg))
}
