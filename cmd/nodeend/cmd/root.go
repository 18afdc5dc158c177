package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/nodeend/internal/jobs"
	"github.com/psantana5/nodeend/internal/squeue"
)

// Version is stamped at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

// Env is what a run talks to outside the process.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	// Runner executes squeue; nil uses os/exec.
	Runner squeue.Runner
	// Location is used to read squeue end times; nil means local time.
	Location *time.Location
	// Hostname returns the name of the machine nodeend runs on.
	Hostname func(ctx context.Context) (string, error)
	// HomeDir locates the default config file.
	HomeDir func() (string, error)
}

// DefaultEnv wires a run to the real process.
func DefaultEnv() *Env {
	return &Env{
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Stdin:    os.Stdin,
		Runner:   squeue.ExecRunner{},
		Location: time.Local,
		Hostname: localHostname,
		HomeDir:  os.UserHomeDir,
	}
}

func localHostname(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", err
	}
	return info.Hostname, nil
}

type options struct {
	filter jobs.Filter

	byTime  bool
	quiet   bool
	verbose bool
	version bool

	output      string
	textfile    string
	input       string
	squeuePath  string
	thisNode    bool
	cfgFile     string
	logLevel    string
	logJSON     bool
	printConfig bool

	cfg *viper.Viper
}

// NewRootCmd builds the nodeend command bound to env.
func NewRootCmd(env *Env) *cobra.Command {
	o := &options{cfg: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "nodeend [flags] [NODELIST|FILE]...",
		Short: "Show when busy Slurm nodes will be free",
		Long: `nodeend reports, for every node running Slurm jobs, the job that ends last
and its projected end time: the earliest moment the node could be fully free.

Nodes may be given as names, ranges such as bell-a[001-004], or absolute paths
to files listing one node per line. Given nodes replace --nodelist. Nodes
without running jobs are left out of the report.

Example:
  nodeend
  nodeend -t -p gpu
  nodeend -v bell-a[001-004] bell-b000
  nodeend --quiet /etc/slurm/login-adjacent.txt`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.loadConfig(cmd, env)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.version {
				fmt.Fprintf(env.Stdout, "nodeend version %s\n", Version)
				return nil
			}
			if o.printConfig {
				return o.writeConfig(env.Stdout)
			}
			return o.run(cmd.Context(), env, args)
		},
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Err: err}
	})

	flags := rootCmd.Flags()
	flags.StringVarP(&o.filter.Account, "account", "A", "", "only jobs charged to these accounts")
	flags.StringVarP(&o.filter.JobIDs, "jobs", "j", "", "only these job ids")
	flags.StringVarP(&o.filter.Licenses, "licenses", "L", "", "only jobs using these licenses")
	flags.StringVarP(&o.filter.Clusters, "clusters", "M", "", "clusters to query")
	flags.StringVarP(&o.filter.Name, "name", "n", "", "only jobs with these names")
	flags.StringVarP(&o.filter.Partition, "partition", "p", "", "only jobs in these partitions")
	flags.StringVarP(&o.filter.QOS, "qos", "q", "", "only jobs with these QOS")
	flags.StringVarP(&o.filter.Reservation, "reservation", "R", "", "only jobs in this reservation")
	flags.StringVarP(&o.filter.User, "user", "u", "", "only jobs owned by these users")
	flags.StringVarP(&o.filter.Nodelist, "nodelist", "w", "", "only these nodes (names, ranges or an absolute file path)")

	flags.BoolVarP(&o.byTime, "time", "t", false, "sort by end time instead of node name")
	flags.BoolVar(&o.quiet, "quiet", false, "do not print the header line")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "also print user, account, job name and limits")
	flags.BoolVarP(&o.version, "version", "V", false, "print the version and exit")
	rootCmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	flags.StringVar(&o.output, "output", "text", "output format: text, table or prom")
	flags.StringVar(&o.textfile, "textfile", "", "also write the report as a Prometheus textfile to this path")
	flags.StringVar(&o.input, "input", "", "read saved squeue output from this file (- for stdin) instead of running squeue")
	flags.StringVar(&o.squeuePath, "squeue", squeue.DefaultPath, "squeue binary to run")
	flags.BoolVar(&o.thisNode, "this-node", false, "add the node nodeend runs on to the report")

	flags.StringVar(&o.cfgFile, "config", "", "config file (default is $HOME/.nodeend/config.yaml)")
	flags.StringVar(&o.logLevel, "log-level", "warn", "diagnostics level: debug, info, warn or error")
	flags.BoolVar(&o.logJSON, "log-json", false, "write diagnostics as JSON lines")
	flags.BoolVar(&o.printConfig, "print-config", false, "print the effective configuration as YAML and exit")

	rootCmd.SetOut(env.Stdout)
	rootCmd.SetErr(env.Stderr)
	rootCmd.SetIn(env.Stdin)
	return rootCmd
}

// Execute runs nodeend with args and returns the process exit status. Fatal
// errors are reported as a single line on env.Stderr.
func Execute(ctx context.Context, args []string, env *Env) int {
	rootCmd := NewRootCmd(env)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(env.Stderr, "nodeend: %s\n", strings.TrimSpace(err.Error()))
	}
	return exitCode(err)
}
