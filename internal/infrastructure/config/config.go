// Package config loads the executive's CLI configuration surface (§6).
package config

import (
	"flag"
)

// Config holds the resolved CLI surface of cmd/plexir-exec: which plan
// and library files to load, an optional config file, and the debug/
// check/block toggles §6 specifies.
type Config struct {
	Plan       string
	Libraries  []string
	ConfigFile string
	DebugFile  string
	Check      bool
	Block      bool
	LogLevel   string
}

type stringList []string

func (s *stringList) String() string { return "" }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// Parse builds a Config from args (typically os.Args[1:]).
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("plexir-exec", flag.ContinueOnError)
	var libs stringList

	plan := fs.String("plan", "", "path to the plan to execute")
	fs.Var(&libs, "library", "path to a library plan (repeatable)")
	cfgFile := fs.String("config", "", "path to an optional config file")
	debug := fs.String("debug", "", "path to a debug-marker file of :marker-pattern lines")
	check := fs.Bool("check", false, "validate the plan and exit without executing it")
	block := fs.Bool("block", false, "gate each macro step on an operator-supplied stdin line")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &Config{
		Plan:       *plan,
		Libraries:  []string(libs),
		ConfigFile: *cfgFile,
		DebugFile:  *debug,
		Check:      *check,
		Block:      *block,
		LogLevel:   *logLevel,
	}, nil
}
