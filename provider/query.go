package provider

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ValueKind tags a bound Value, so Providers may bind it safely.
type ValueKind int

const (
	// Null binds SQL NULL.
	Null ValueKind = iota
	// Text binds a string.
	Text
	// Numeric binds an integer or floating-point number given in decimal form.
	Numeric
)

// Value is a tagged parameter value of a Query.
type Value struct {
	Kind ValueKind
	Data string
}

// Arg returns the Value as a database/sql argument.
func (v Value) Arg() (interface{}, error) {
	switch v.Kind {
	case Null:
		return nil, nil
	case Text:
		return v.Data, nil
	case Numeric:
		if n, err := strconv.ParseInt(v.Data, 10, 64); err == nil {
			return n, nil
		} else if f, err := strconv.ParseFloat(v.Data, 64); err == nil {
			return f, nil
		}
		return nil, errors.Errorf("value %q is not numeric", v.Data)
	default:
		return nil, errors.Errorf("invalid ValueKind %d", v.Kind)
	}
}

// Param is a named Value.
type Param struct {
	Name string
	Value
}

// Query is a statement having named placeholders of the form ":name",
// and the ordered Params bound to them. Values are never interpolated
// into Text.
type Query struct {
	Text   string
	Params []Param
	// Schema marks statements which create or alter schema. Providers absorb
	// "already exists" failures of Schema statements.
	Schema bool
}

// NewQuery returns a Query of |text|.
func NewQuery(text string) Query { return Query{Text: text} }

// SetValue binds |name| to |value|, as Text if |text| or as Numeric otherwise.
func (q *Query) SetValue(name, value string, text bool) {
	var kind = Numeric
	if text {
		kind = Text
	}
	q.set(name, Value{Kind: kind, Data: value})
}

// SetText binds |name| to string |value|.
func (q *Query) SetText(name, value string) { q.set(name, Value{Kind: Text, Data: value}) }

// SetInt binds |name| to integer |value|.
func (q *Query) SetInt(name string, value int64) {
	q.set(name, Value{Kind: Numeric, Data: strconv.FormatInt(value, 10)})
}

// SetUint binds |name| to unsigned integer |value|.
func (q *Query) SetUint(name string, value uint64) {
	q.set(name, Value{Kind: Numeric, Data: strconv.FormatUint(value, 10)})
}

// SetNull binds |name| to NULL.
func (q *Query) SetNull(name string) { q.set(name, Value{Kind: Null}) }

func (q *Query) set(name string, v Value) {
	for i := range q.Params {
		if q.Params[i].Name == name {
			q.Params[i].Value = v
			return
		}
	}
	q.Params = append(q.Params, Param{Name: name, Value: v})
}

// Lookup returns the Value bound to |name|.
func (q Query) Lookup(name string) (Value, bool) {
	for _, p := range q.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Bind rewrites the named placeholders of the Query into positional
// placeholders produced by |placeholder| (which is passed the 1-based
// argument position), and returns the rewritten text with its ordered
// arguments. Placeholders within quoted strings or identifiers are left
// alone, as are "::" type casts. It's an error for a placeholder to lack a
// bound Param.
func (q Query) Bind(placeholder func(n int) string) (string, []interface{}, error) {
	var (
		src   = q.Text
		out   strings.Builder
		args  []interface{}
		quote byte
	)
	out.Grow(len(src))

	for i := 0; i < len(src); i++ {
		var c = src[i]

		if quote != 0 {
			out.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"' || c == '`':
			quote = c
			out.WriteByte(c)
		case c == ':' && i+1 < len(src) && src[i+1] == ':':
			out.WriteString("::")
			i++
		case c == ':' && i+1 < len(src) && isIdentStart(src[i+1]):
			var j = i + 1
			for j < len(src) && isIdent(src[j]) {
				j++
			}
			var name = src[i+1 : j]

			var v, ok = q.Lookup(name)
			if !ok {
				return "", nil, errors.Errorf("placeholder %q has no bound value", name)
			}
			var arg, err = v.Arg()
			if err != nil {
				return "", nil, errors.WithMessagef(err, "binding %q", name)
			}
			args = append(args, arg)
			out.WriteString(placeholder(len(args)))
			i = j - 1
		default:
			out.WriteByte(c)
		}
	}
	if quote != 0 {
		return "", nil, errors.Errorf("unterminated quote (%c) in query", quote)
	}
	return out.String(), args, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(c byte) bool { return isIdentStart(c) || (c >= '0' && c <= '9') }
