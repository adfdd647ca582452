package serialize

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// typesDoc is the YAML document form of Type definitions:
//
//	types:
//	  - name: Account
//	    fields:
//	      - name: email
//	      - name: greet
//	  - name: Memo
//	    fields:
//	      - name: receiver
//	        ref: Account
//	      - name: text
type typesDoc struct {
	Types []struct {
		Name   string `yaml:"name"`
		Fields []struct {
			Name string `yaml:"name"`
			Ref  string `yaml:"ref,omitempty"`
		} `yaml:"fields"`
	} `yaml:"types"`
}

// LoadTypes reads YAML Type definitions from |r| into the Registry. Types
// not yet registered are registered, and registered Types gain Fields they
// don't already have. Fields already present must agree in kind and target.
func LoadTypes(r io.Reader, reg *Registry) error {
	var doc typesDoc
	var dec = yaml.NewDecoder(r)
	dec.SetStrict(true)

	if err := dec.Decode(&doc); err == io.EOF {
		return nil
	} else if err != nil {
		return errors.WithMessage(err, "decoding types")
	}

	for _, td := range doc.Types {
		var fields []Field
		for _, fd := range td.Fields {
			var f = Field{Name: fd.Name, Target: fd.Ref}
			if fd.Ref != "" {
				f.Kind = Reference
			}
			fields = append(fields, f)
		}

		var t = reg.Type(td.Name)
		if t == nil {
			if _, err := reg.Register(td.Name, fields...); err != nil {
				return err
			}
			continue
		}
		for _, f := range fields {
			if cur := t.Field(f.Name); cur == nil {
				if _, err := reg.AddField(t.Name(), f); err != nil {
					return err
				}
			} else if cur.Kind != f.Kind || cur.Target != f.Target {
				return errors.Errorf("field %s.%s redeclared as %s (was %s)",
					t.Name(), f.Name, f.Kind, cur.Kind)
			}
		}
	}
	return reg.Validate()
}
