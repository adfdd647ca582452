// Package svcctlcmd implements sub-commands of svcctl, which inspects and
// edits objects persisted by the services daemon.
package svcctlcmd

import (
	"context"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"go.ircservices.dev/core/bridge"
	"go.ircservices.dev/core/cycle"
	mbp "go.ircservices.dev/core/mainboilerplate"
	"go.ircservices.dev/core/serialize"
	"go.ircservices.dev/core/services"
)

// Config is the configuration shared by svcctl sub-commands.
var Config = new(struct {
	Types    mbp.TypesConfig    `group:"Types" namespace:"types" env-namespace:"TYPES"`
	Database mbp.DatabaseConfig `group:"Database" namespace:"database" env-namespace:"DATABASE"`
	Log      mbp.LogConfig      `group:"Logging" namespace:"log" env-namespace:"LOG"`
})

// CommandRegistry holds svcctl sub-commands, registered from init().
var CommandRegistry = mbp.NewCommandRegistry()

// Output of sub-commands.
var Output io.Writer = os.Stdout

// session is an opened Bridge over the configured database. Hooks are
// invoked directly, and the session's Loop is cycled to commit.
type session struct {
	reg    *serialize.Registry
	dbs    *mbp.Databases
	loop   *cycle.Loop
	bridge *bridge.Bridge
	objs   *serialize.Objects
}

func startup() {
	mbp.InitLog(Config.Log, "svcctl")
}

func openSession() (*session, error) {
	var reg = serialize.NewRegistry()
	if err := services.RegisterTypes(reg); err != nil {
		return nil, err
	} else if err = Config.Types.LoadTypes(reg); err != nil {
		return nil, err
	}

	var dbs, err = Config.Database.OpenDatabases(context.Background())
	if err != nil {
		return nil, err
	}

	var s = &session{
		reg:  reg,
		dbs:  dbs,
		loop: cycle.NewLoop(1),
	}
	s.bridge = bridge.New(reg, dbs.Directory, s.loop)
	s.bridge.Reconfigure(Config.Database.Config)

	if !s.bridge.Bound() {
		dbs.Close()
		return nil, errors.Errorf("database engine %q is not available (have %v)",
			Config.Database.Engine, dbs.Names())
	}
	s.objs = serialize.NewObjects(reg, s.bridge)
	return s, nil
}

// withSession opens a session and invokes |fn| with it. The session's
// transaction is then committed and its databases are closed.
func withSession(fn func(*session) error) error {
	var s, err = openSession()
	if err != nil {
		return err
	}
	err = fn(s)

	s.loop.Cycle()
	s.dbs.Close()

	if err == nil {
		err = errors.WithMessage(s.bridge.CommitErr(), "committing")
	}
	return err
}

func (s *session) typ(name string) (*serialize.Type, error) {
	if t := s.reg.Type(name); t != nil {
		return t, nil
	}
	var names []string
	for _, t := range s.reg.Types() {
		names = append(names, t.Name())
	}
	return nil, errors.Errorf("unknown type %q (have %v)", name, names)
}

// object returns the stored Object of type |typeName| having |id|.
func (s *session) object(typeName, id string) (*serialize.Object, error) {
	var t, err = s.typ(typeName)
	if err != nil {
		return nil, err
	}
	parsed, err := serialize.ParseID(id)
	if err != nil {
		return nil, err
	}
	if ok, err := s.objs.Exists(t, parsed); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Errorf("%s:%d not found", t.Name(), parsed)
	}
	return t.Require(parsed), nil
}

func (s *session) field(o *serialize.Object, name string) (*serialize.Field, error) {
	if f := o.Type().Field(name); f != nil {
		return f, nil
	}
	return nil, errors.Errorf("type %s has no field %q", o.Type().Name(), name)
}

// values returns rendered values of |fields| of |o|. Reference values are
// rendered as type:id, and absent values as "<none>".
func (s *session) values(o *serialize.Object, fields []*serialize.Field) ([]string, error) {
	var out []string
	for _, f := range fields {
		var v = "<none>"

		if f.IsReference() {
			if other, ok, err := s.objs.GetRef(o, f.Name); err != nil {
				return nil, err
			} else if ok {
				v = other.String()
			}
		} else if value, ok, err := s.objs.Get(o, f.Name); err != nil {
			return nil, err
		} else if ok {
			v = value
		}
		out = append(out, v)
	}
	return out, nil
}

// selectFields returns Fields of |t| named by |names|, or all Fields if empty.
func selectFields(t *serialize.Type, names []string) ([]*serialize.Field, error) {
	if len(names) == 0 {
		return t.Fields(), nil
	}
	var out []*serialize.Field
	for _, n := range names {
		var f = t.Field(n)
		if f == nil {
			return nil, errors.Errorf("type %s has no field %q", t.Name(), n)
		}
		out = append(out, f)
	}
	return out, nil
}

// renderTable writes |rows| beneath |headers| to Output.
func renderTable(headers []string, rows [][]string) error {
	var table = tablewriter.NewWriter(Output)
	table.Header(headers)

	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return errors.WithMessage(err, "appending table row")
		}
	}
	return errors.WithMessage(table.Render(), "rendering table")
}
