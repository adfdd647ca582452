package mainboilerplate

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

// ConfigSearchPaths returns directories searched for an INI file, in order:
//   - The current working directory.
//   - $APPLICATION_CONFIG_ROOT, if set.
//   - ~/.config/ircservices (under the user's $HOME or %UserProfile% directory).
func ConfigSearchPaths() []string {
	var out = []string{"."}

	if root := os.Getenv("APPLICATION_CONFIG_ROOT"); root != "" {
		out = append(out, root)
	}
	for _, home := range []string{os.Getenv("HOME"), os.Getenv("UserProfile")} {
		if home != "" {
			out = append(out, filepath.Join(home, ".config", "ircservices"))
		}
	}
	return out
}

// ParseConfigFile parses the first INI file named |configName| found within
// ConfigSearchPaths into the Parser, ignoring unknown options. It returns
// the path of the parsed file, or "" if none was found.
//
// Keys of namespaced groups must carry their namespace:
//
//	[Database]
//	database.engine = postgres
//
// A bare "engine = postgres" within [Database] is an unknown option, and is
// ignored.
func ParseConfigFile(parser *flags.Parser, configName string) (string, error) {
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown
	defer func() { parser.Options = origOptions }()

	var iniParser = flags.NewIniParser(parser)

	for _, prefix := range ConfigSearchPaths() {
		var path = filepath.Join(prefix, configName)

		if err := iniParser.ParseFile(path); err == nil {
			return path, nil
		} else if os.IsNotExist(err) {
			// Pass.
		} else {
			return "", err
		}
	}
	return "", nil
}

// MustParseConfig requires that the Parser parse from the combination of an
// optional INI file, configured environment bindings, and explicit flags.
func MustParseConfig(parser *flags.Parser, configName string) {
	if _, err := ParseConfigFile(parser, configName); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	MustParseArgs(parser)
}

// MustParseArgs requires that Parser be able to ParseArgs without error.
func MustParseArgs(parser *flags.Parser) {
	if _, err := parser.ParseArgs(os.Args[1:]); err != nil {
		var flagErr, ok = err.(*flags.Error)
		if !ok {
			Must(err, "fatal error")
		}

		switch flagErr.Type {
		case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
			// A developer error in the configuration object, rather than an input error.
			panic(err)

		case flags.ErrCommandRequired, flags.ErrHelp:
			if flagErr.Type == flags.ErrCommandRequired || parser.Options&flags.PrintErrors == 0 {
				os.Stderr.WriteString("\n")
				parser.WriteHelp(os.Stderr)
			}
			fmt.Fprintf(os.Stderr, "\nVersion %s, built at %s.\n", Version, BuildDate)
			os.Exit(1)

		default:
			// go-flags has already printed a message describing the input error.
			os.Exit(1)
		}
	}
}

// AddPrintConfigCmd to the Parser. The "print-config" command exports all
// runtime configuration in INI format, so operators may check what a
// process would run with.
func AddPrintConfigCmd(parser *flags.Parser, configName string) {
	parser.AddCommand("print-config", "Print combined configuration and exit", `
print-config parses the combined configuration from `+configName+`, flags,
and environment variables, and then writes the configuration to stdout in INI format.
`, &printConfig{parser})
}

type printConfig struct {
	*flags.Parser `no-flag:"t"`
}

func (p printConfig) Execute([]string) error {
	var ini = flags.NewIniParser(p.Parser)
	ini.Write(os.Stdout, flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
	return nil
}
