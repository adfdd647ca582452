package svcctlcmd

import (
	"fmt"

	"github.com/pkg/errors"
	"go.ircservices.dev/core/serialize"
)

type cmdTypes struct{}

type cmdList struct {
	Fields []string `long:"field" short:"f" description:"Fields to present as columns. All fields if not set"`
	Args   struct {
		Type string `positional-arg-name:"type"`
	} `positional-args:"yes" required:"yes"`
}

type cmdGet struct {
	Args struct {
		Type   string   `positional-arg-name:"type" required:"yes"`
		ID     string   `positional-arg-name:"id" required:"yes"`
		Fields []string `positional-arg-name:"field"`
	} `positional-args:"yes"`
}

type cmdCreate struct {
	Args struct {
		Type string `positional-arg-name:"type"`
	} `positional-args:"yes" required:"yes"`
}

type cmdSet struct {
	Args struct {
		Type  string `positional-arg-name:"type"`
		ID    string `positional-arg-name:"id"`
		Field string `positional-arg-name:"field"`
		Value string `positional-arg-name:"value"`
	} `positional-args:"yes" required:"yes"`
}

type cmdUnset struct {
	Args struct {
		Type  string `positional-arg-name:"type"`
		ID    string `positional-arg-name:"id"`
		Field string `positional-arg-name:"field"`
	} `positional-args:"yes" required:"yes"`
}

type cmdDelete struct {
	Args struct {
		Type string `positional-arg-name:"type"`
		ID   string `positional-arg-name:"id"`
	} `positional-args:"yes" required:"yes"`
}

type cmdFind struct {
	Args struct {
		Type  string `positional-arg-name:"type"`
		Field string `positional-arg-name:"field"`
		Value string `positional-arg-name:"value"`
	} `positional-args:"yes" required:"yes"`
}

type cmdEdges struct {
	Type string `long:"type" short:"t" description:"Only show edges of objects of this type"`
	Args struct {
		Type string `positional-arg-name:"type"`
		ID   string `positional-arg-name:"id"`
	} `positional-args:"yes" required:"yes"`
}

func init() {
	CommandRegistry.AddCommand("", "types", "List registered types", `
List registered types and their fields. Types are built in, or are loaded
from the YAML file of --types.path.
`, &cmdTypes{})

	CommandRegistry.AddCommand("", "list", "List objects of a type", `
List stored objects of a type, with a column for each field. Reference
fields are shown as type:id.

List channels with their founders:
>    svcctl list Channel -f name -f founder
`, &cmdList{})

	CommandRegistry.AddCommand("", "get", "Get fields of an object", `
Get fields of a stored object. All fields are shown if none are named.
`, &cmdGet{})

	CommandRegistry.AddCommand("", "create", "Create an object", `
Create an object of a type, printing its allocated ID.
`, &cmdCreate{})

	CommandRegistry.AddCommand("", "set", "Set a field of an object", `
Set a field of a stored object. The value of a reference field is the ID of
an object of the referenced type, which must exist.
`, &cmdSet{})

	CommandRegistry.AddCommand("", "unset", "Unset a field of an object", `
Unset a field of a stored object, storing NULL.
`, &cmdUnset{})

	CommandRegistry.AddCommand("", "delete", "Delete an object", `
Delete a stored object. Objects referencing it are not modified.
`, &cmdDelete{})

	CommandRegistry.AddCommand("", "find", "Find an object by field value", `
Find the object of a type having a field equal to a value, printing its ID.

Find the account named "alice":
>    svcctl find Account display alice
`, &cmdFind{})

	CommandRegistry.AddCommand("", "edges", "List objects referencing an object", `
List edges of a stored object: the objects it references, and the objects
which reference it.
`, &cmdEdges{})
}

func (cmd *cmdTypes) Execute([]string) error {
	startup()

	return withSession(func(s *session) error {
		var rows [][]string
		for _, t := range s.reg.Types() {
			for _, f := range t.Fields() {
				rows = append(rows, []string{t.Name(), f.Name, f.Kind.String(), f.Target})
			}
		}
		return renderTable([]string{"Type", "Field", "Kind", "Target"}, rows)
	})
}

func (cmd *cmdList) Execute([]string) error {
	startup()

	return withSession(func(s *session) error {
		var t, err = s.typ(cmd.Args.Type)
		if err != nil {
			return err
		}
		fields, err := selectFields(t, cmd.Fields)
		if err != nil {
			return err
		}
		objs, err := s.objs.List(t)
		if err != nil {
			return err
		}

		var headers = []string{"ID"}
		for _, f := range fields {
			headers = append(headers, f.Name)
		}
		var rows [][]string
		for _, o := range objs {
			var row, err = s.values(o, fields)
			if err != nil {
				return err
			}
			rows = append(rows, append([]string{o.ID.String()}, row...))
		}
		return renderTable(headers, rows)
	})
}

func (cmd *cmdGet) Execute([]string) error {
	startup()

	return withSession(func(s *session) error {
		var o, err = s.object(cmd.Args.Type, cmd.Args.ID)
		if err != nil {
			return err
		}
		fields, err := selectFields(o.Type(), cmd.Args.Fields)
		if err != nil {
			return err
		}
		values, err := s.values(o, fields)
		if err != nil {
			return err
		}

		var rows [][]string
		for i, f := range fields {
			rows = append(rows, []string{f.Name, values[i]})
		}
		return renderTable([]string{"Field", "Value"}, rows)
	})
}

func (cmd *cmdCreate) Execute([]string) error {
	startup()

	var id serialize.ID
	if err := withSession(func(s *session) error {
		var t, err = s.typ(cmd.Args.Type)
		if err != nil {
			return err
		}
		o, err := s.objs.New(t)
		if err != nil {
			return err
		}
		id = o.ID
		return nil
	}); err != nil {
		return err
	}
	// Print only once committed.
	fmt.Fprintln(Output, id)
	return nil
}

func (cmd *cmdSet) Execute([]string) error {
	startup()

	return withSession(func(s *session) error {
		var o, err = s.object(cmd.Args.Type, cmd.Args.ID)
		if err != nil {
			return err
		}
		f, err := s.field(o, cmd.Args.Field)
		if err != nil {
			return err
		}
		if !f.IsReference() {
			return s.objs.Set(o, f.Name, cmd.Args.Value)
		}

		target, err := s.object(f.Target, cmd.Args.Value)
		if err != nil {
			return errors.WithMessagef(err, "resolving %s", f.Name)
		}
		return s.objs.SetRef(o, f.Name, target)
	})
}

func (cmd *cmdUnset) Execute([]string) error {
	startup()

	return withSession(func(s *session) error {
		var o, err = s.object(cmd.Args.Type, cmd.Args.ID)
		if err != nil {
			return err
		}
		if _, err = s.field(o, cmd.Args.Field); err != nil {
			return err
		}
		return s.objs.Unset(o, cmd.Args.Field)
	})
}

func (cmd *cmdDelete) Execute([]string) error {
	startup()

	return withSession(func(s *session) error {
		var o, err = s.object(cmd.Args.Type, cmd.Args.ID)
		if err != nil {
			return err
		}
		return s.objs.Delete(o)
	})
}

func (cmd *cmdFind) Execute([]string) error {
	startup()

	return withSession(func(s *session) error {
		var t, err = s.typ(cmd.Args.Type)
		if err != nil {
			return err
		}
		o, ok, err := s.objs.Find(t, cmd.Args.Field, cmd.Args.Value)
		if err != nil {
			return err
		} else if !ok {
			return errors.Errorf("no %s has %s %q", t.Name(), cmd.Args.Field, cmd.Args.Value)
		}
		fmt.Fprintln(Output, o.ID)
		return nil
	})
}

func (cmd *cmdEdges) Execute([]string) error {
	startup()

	return withSession(func(s *session) error {
		var o, err = s.object(cmd.Args.Type, cmd.Args.ID)
		if err != nil {
			return err
		}
		var filter *serialize.Type
		if cmd.Type != "" {
			if filter, err = s.typ(cmd.Type); err != nil {
				return err
			}
		}
		edges, err := s.objs.Edges(o, filter)
		if err != nil {
			return err
		}
		for _, f := range o.Type().Fields() {
			if !f.IsReference() || (filter != nil && f.Target != filter.Name()) {
				continue
			}
			if other, ok, err := s.objs.GetRef(o, f.Name); err != nil {
				return err
			} else if ok {
				edges = append(edges, serialize.Edge{Other: other, Field: f, Outgoing: true})
			}
		}

		var rows [][]string
		for _, e := range edges {
			var dir, field = "in", e.Other.Type().Name() + "." + e.Field.Name
			if e.Outgoing {
				dir, field = "out", o.Type().Name()+"."+e.Field.Name
			}
			rows = append(rows, []string{dir, field, e.Other.String()})
		}
		return renderTable([]string{"Direction", "Field", "Object"}, rows)
	})
}
