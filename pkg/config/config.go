// Package config binds the SKITTER_* environment variables and their
// matching CLI flags into one Config value, using viper the
// way the rest of the runtime's CLI layer is built: flags registered on
// a cobra command, bound to viper, with environment variables as the
// fallback source.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skitterhq/skitter/pkg/mode"
)

// Config is the fully resolved runtime configuration for one Skitter
// process, after flags, environment, and defaults have been merged.
type Config struct {
	Mode mode.Mode

	// Master is this worker's configured master address (worker mode).
	Master string
	// Workers is this master's configured worker address list (master
	// mode), each optionally of the form name@host[:tag,...].
	Workers []string
	// Tags are the worker tags from --tag or SKITTER_TAGS (space-separated).
	// cmd/skitter loads them but does not send them: a worker connects to
	// its master with an empty tag list.
	Tags []string

	NoShutdownWithMaster bool
	ShutdownWithWorkers  bool

	// Deploy, if set, names a workflow file to load and deploy at startup.
	Deploy string

	// Log controls whether file logging is enabled in addition to stdout
	// (SKITTER_LOG names the file; empty disables it).
	Log string

	LogLevel string
	LogJSON  bool

	// Bind is the address this runtime's transport listens on.
	Bind string
	// HTTPBind is the address the admin HTTP surface listens on.
	HTTPBind string

	// WorkerFile, if set, is watched for changes to the worker list
	// (master mode only).
	WorkerFile string
	// WaitTime bounds how long startup waits for configured peers to
	// connect before giving up.
	WaitTime string
}

const envPrefix = "SKITTER"

// BindFlags registers the CLI flags for cmd and binds them to viper,
// mirroring each to its SKITTER_* environment variable.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("mode", "local", "Runtime mode: master, worker, or local")
	flags.String("master", "", "Master address to connect to (worker mode)")
	flags.StringSlice("workers", nil, "Worker addresses to connect to, [name@]host[:tag,...] (master mode)")
	flags.StringSlice("tag", nil, "Worker tags (loaded, but not sent to the master during the handshake)")
	flags.Bool("no-shutdown-with-master", false, "Do not exit when the master connection is lost (worker mode)")
	flags.Bool("shutdown-with-workers", false, "Exit when any accepted worker connection is lost (master mode)")
	flags.String("deploy", "", "Workflow file to deploy at startup")
	flags.String("log", "", "Additionally log to this file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "Output logs in JSON format")
	flags.String("bind", ":7946", "Transport listen address")
	flags.String("http-bind", ":8080", "Admin HTTP listen address (healthz, metrics, status)")
	flags.String("worker-file", "", "File to watch for worker list changes (master mode)")
	flags.String("wait-time", "30s", "How long startup waits for configured peers to connect")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// The tag flag is singular but its environment variable is plural.
	_ = v.BindEnv("tag", envPrefix+"_TAGS")
	_ = v.BindPFlags(flags)
}

// Load resolves v into a Config, validating the mode value.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Mode:                 mode.Mode(v.GetString("mode")),
		Master:               v.GetString("master"),
		Workers:              v.GetStringSlice("workers"),
		Tags:                 v.GetStringSlice("tag"),
		NoShutdownWithMaster: v.GetBool("no-shutdown-with-master"),
		ShutdownWithWorkers:  v.GetBool("shutdown-with-workers"),
		Deploy:               v.GetString("deploy"),
		Log:                  v.GetString("log"),
		LogLevel:             v.GetString("log-level"),
		LogJSON:              v.GetBool("log-json"),
		Bind:                 v.GetString("bind"),
		HTTPBind:             v.GetString("http-bind"),
		WorkerFile:           v.GetString("worker-file"),
		WaitTime:             v.GetString("wait-time"),
	}
	if !cfg.Mode.Valid() {
		return Config{}, fmt.Errorf("config: invalid mode %q (want master, worker, or local)", cfg.Mode)
	}
	return cfg, nil
}

// ParsedWorker is one entry of a worker-file/--workers list: an optional
// display name, a host address, and zero or more tags, in the grammar
// "[name@]host[:tag,...]".
type ParsedWorker struct {
	Name string
	Host string
	Tags []string
}

// ParseWorker splits one worker-list entry into its name/host/tags parts.
func ParseWorker(entry string) (ParsedWorker, error) {
	if entry == "" {
		return ParsedWorker{}, fmt.Errorf("config: empty worker entry")
	}
	pw := ParsedWorker{Host: entry}

	if at := strings.Index(entry, "@"); at >= 0 {
		pw.Name = entry[:at]
		entry = entry[at+1:]
	}

	if colon := strings.Index(entry, ":"); colon >= 0 {
		pw.Host = entry[:colon]
		tagPart := entry[colon+1:]
		if tagPart != "" {
			pw.Tags = strings.Split(tagPart, ",")
		}
	} else {
		pw.Host = entry
	}

	if pw.Host == "" {
		return ParsedWorker{}, fmt.Errorf("config: worker entry %q has no host", entry)
	}
	return pw, nil
}

// ParseWorkers parses every entry of entries via ParseWorker.
func ParseWorkers(entries []string) ([]ParsedWorker, error) {
	out := make([]ParsedWorker, 0, len(entries))
	for _, e := range entries {
		pw, err := ParseWorker(e)
		if err != nil {
			return nil, err
		}
		out = append(out, pw)
	}
	return out, nil
}
