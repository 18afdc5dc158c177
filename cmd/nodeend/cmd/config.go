package cmd

import (
	"errors"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/nodeend/internal/report"
)

// configKeys maps config file / NODEEND_* environment keys to the flags
// they provide defaults for.
var configKeys = map[string]string{
	"squeue":    "squeue",
	"log_level": "log-level",
	"log_json":  "log-json",
	"output":    "output",
	"partition": "partition",
	"clusters":  "clusters",
	"account":   "account",
	"user":      "user",
	"qos":       "qos",
}

// loadConfig reads the config file and environment. A flag set on the
// command line always wins over both.
func (o *options) loadConfig(cmd *cobra.Command, env *Env) error {
	v := o.cfg
	search := false
	if o.cfgFile != "" {
		v.SetConfigFile(o.cfgFile)
		search = true
	} else if env.HomeDir != nil {
		if home, err := env.HomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".nodeend"))
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			search = true
		}
	}

	v.SetEnvPrefix("nodeend")
	v.AutomaticEnv()
	v.SetDefault("sort", "node")

	if search {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if o.cfgFile != "" || !errors.As(err, &notFound) {
				return usageError("failed to read config: %w", err)
			}
		}
	}

	flags := cmd.Flags()
	for key, flag := range configKeys {
		if flags.Changed(flag) || !v.IsSet(key) {
			continue
		}
		if err := flags.Set(flag, v.GetString(key)); err != nil {
			return usageError("invalid %s in config: %w", key, err)
		}
	}

	if !flags.Changed("time") {
		sortBy, err := report.ParseSortBy(v.GetString("sort"))
		if err != nil {
			return usageError("invalid sort in config: %w", err)
		}
		o.byTime = sortBy == report.SortByTime
	}
	return nil
}

type effectiveConfig struct {
	ConfigFile string        `yaml:"config_file,omitempty"`
	Squeue     string        `yaml:"squeue"`
	Input      string        `yaml:"input,omitempty"`
	Output     string        `yaml:"output"`
	Textfile   string        `yaml:"textfile,omitempty"`
	Sort       string        `yaml:"sort"`
	Verbosity  string        `yaml:"verbosity"`
	LogLevel   string        `yaml:"log_level"`
	LogJSON    bool          `yaml:"log_json"`
	Filters    filterSection `yaml:"filters"`
}

type filterSection struct {
	Account     string `yaml:"account,omitempty"`
	Jobs        string `yaml:"jobs,omitempty"`
	Licenses    string `yaml:"licenses,omitempty"`
	Clusters    string `yaml:"clusters,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Partition   string `yaml:"partition,omitempty"`
	QOS         string `yaml:"qos,omitempty"`
	Reservation string `yaml:"reservation,omitempty"`
	User        string `yaml:"user,omitempty"`
	Nodelist    string `yaml:"nodelist,omitempty"`
}

func (o *options) effective() effectiveConfig {
	sortBy := report.SortByNode
	if o.byTime {
		sortBy = report.SortByTime
	}
	verbosity := "normal"
	switch {
	case o.quiet:
		verbosity = "quiet"
	case o.verbose:
		verbosity = "verbose"
	}

	f := o.filter
	return effectiveConfig{
		ConfigFile: o.cfg.ConfigFileUsed(),
		Squeue:     o.squeuePath,
		Input:      o.input,
		Output:     o.output,
		Textfile:   o.textfile,
		Sort:       sortBy.String(),
		Verbosity:  verbosity,
		LogLevel:   o.logLevel,
		LogJSON:    o.logJSON,
		Filters: filterSection{
			Account:     f.Account,
			Jobs:        f.JobIDs,
			Licenses:    f.Licenses,
			Clusters:    f.Clusters,
			Name:        f.Name,
			Partition:   f.Partition,
			QOS:         f.QOS,
			Reservation: f.Reservation,
			User:        f.User,
			Nodelist:    f.Nodelist,
		},
	}
}

func (o *options) writeConfig(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(o.effective()); err != nil {
		return runtimeError("failed to encode config: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return runtimeError("failed to encode config: %w", err)
	}
	return nil
}

// ExampleConfig is a commented $HOME/.nodeend/config.yaml.
const ExampleConfig = `# nodeend configuration. Flags on the command line win over these values,
# and NODEEND_<KEY> environment variables win over this file.

# squeue binary to run
squeue: /usr/bin/squeue

# text, table or prom
output: text

# node or time
sort: node

# default job filters
partition: ""
clusters: ""
account: ""
user: ""
qos: ""

log_level: warn
log_json: false
`
