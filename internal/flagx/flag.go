// Package flagx contains small helpers around the standard flag package so
// several config layers can read the same os.Args without tripping over
// each other's flags.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs keeps only the recognised flags from args.
//
// valued flags take a value either as the next token (-l /var/segments) or
// inline (-l=/var/segments). switches are boolean flags (-k) and never
// consume the following token. Everything else is dropped.
func FilterArgs(args []string, valued []string, switches ...string) []string {
	kinds := make(map[string]bool, len(valued)+len(switches))
	for _, f := range valued {
		kinds[f] = true
	}
	for _, f := range switches {
		kinds[f] = false
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, _, inline := strings.Cut(arg, "=")
		takesValue, known := kinds[name]
		if !strings.HasPrefix(arg, "-") || !known {
			continue
		}
		out = append(out, arg)
		if inline || !takesValue {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// ConfigPath returns the JSON config file named by -c or -config, or "".
func ConfigPath() string {
	var path string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(os.Args[1:], []string{"-c", "-config"}))

	return path
}

// StringList is a repeatable string flag: -camera a -camera b.
type StringList []string

func (s *StringList) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *StringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}
