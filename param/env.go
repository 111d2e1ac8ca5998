package param

import (
	"context"
	"os"
	"slices"
	"strconv"
	"strings"
)

// EnvSource reads process environment variables. Prefix is prepended to
// every key; an empty Allow list permits every variable.
type EnvSource struct {
	Prefix string
	Allow  []string
}

// Lookup implements Source.
func (e EnvSource) Lookup(_ context.Context, key string) (any, bool) {
	if len(e.Allow) > 0 && !slices.Contains(e.Allow, key) {
		return nil, false
	}
	return os.LookupEnv(e.Prefix + key)
}

// ArgsSource serves command-line arguments. A numeric key selects a
// positional argument (0-based, key=value arguments excluded); any other
// key matches a "key=value" or "--key=value" argument.
type ArgsSource []string

// Lookup implements Source.
func (a ArgsSource) Lookup(_ context.Context, key string) (any, bool) {
	if idx, err := strconv.Atoi(key); err == nil {
		positional := 0
		for _, arg := range a {
			if strings.Contains(arg, "=") {
				continue
			}
			if positional == idx {
				return arg, true
			}
			positional++
		}
		return nil, false
	}

	for _, arg := range a {
		name, value, ok := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if ok && name == key {
			return value, true
		}
	}
	return nil, false
}

// ProcessSource describes the running process for the server kind outside
// of HTTP.
func ProcessSource() MapSource {
	host, _ := os.Hostname()
	wd, _ := os.Getwd()
	argv0 := ""
	if len(os.Args) > 0 {
		argv0 = os.Args[0]
	}
	return MapSource{
		"hostname": host,
		"pid":      strconv.Itoa(os.Getpid()),
		"program":  argv0,
		"cwd":      wd,
	}
}
