// Package flagx lets several independent flag sets share one command line.
// Each consumer picks out the flags it owns and ignores the rest.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs returns only the allowed flags from args, together with their
// values.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
//
// A following argument counts as the value unless it starts with '-'.
func FilterArgs(args []string, allowedFlags []string) []string {
	kept, _ := partition(args, allowedFlags)
	return kept
}

// ExcludeArgs is the complement of FilterArgs: it drops the listed flags and
// their values and returns everything else in order, positionals included.
func ExcludeArgs(args []string, excludedFlags []string) []string {
	_, rest := partition(args, excludedFlags)
	return rest
}

func partition(args []string, flags []string) (matched, rest []string) {
	set := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		set[f] = struct{}{}
	}

	// both empty, not nil, so callers can range or append freely
	matched = make([]string, 0, len(args))
	rest = make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := set[name]; ok {
				matched = append(matched, arg)
			} else {
				rest = append(rest, arg)
			}
			continue
		}

		if _, ok := set[arg]; !ok {
			rest = append(rest, arg)
			continue
		}

		matched = append(matched, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			matched = append(matched, args[i+1])
			i++
		}
	}

	return matched, rest
}

// ConfigFileFlags lists the spellings of the JSON config file flag.
var ConfigFileFlags = []string{"-c", "-config"}

// ConfigFileFlag extracts the path given via -c or -config from args
// (usually os.Args[1:]). It returns "" when neither is present; the last
// occurrence wins.
func ConfigFileFlag(args []string) string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, ConfigFileFlags))

	return config
}
