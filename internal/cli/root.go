package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbigot/pkg-builder/internal/cancel"
	"github.com/jbigot/pkg-builder/internal/config"
	"github.com/jbigot/pkg-builder/internal/fetch"
	"github.com/jbigot/pkg-builder/internal/run"
)

type options struct {
	passphrase    string
	verbose       bool
	interactive   bool
	distributions []string
	jobs          int
	configPath    string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "pkg-builder [build.conf]",
		Short: "Build signed deb/rpm package repositories from a declarative configuration",
		Long: `pkg-builder builds every configured source package for every configured
distribution release inside a hermetic builder container, respecting the
build dependencies between the packages, and publishes the results as
signed apt and dnf repositories.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = config.DefaultPath
			if len(args) > 0 {
				opts.configPath = args[0]
			}
			return build(&opts)
		},
	}

	rootCmd.Flags().StringVarP(&opts.passphrase, "passphrase", "p", "", "GPG key passphrase")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Inherit child output; forces -j 1")
	rootCmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "On error, prompt before cleaning the work directory")
	rootCmd.Flags().StringSliceVarP(&opts.distributions, "distributions", "D", nil,
		"Only build for matching releases (distro, distro:codename, distro:suite, distro:id, or distro:name)")
	rootCmd.Flags().IntVarP(&opts.jobs, "jobs", "j", 0, "Scheduler pool size (default: CPUs+1)")

	return rootCmd
}

// build is the top-level orchestration: one pass per configured output
// distribution.
func build(opts *options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	bus := cancel.NewBus()
	installSignalHandler(bus)
	runner := run.NewRunner(bus, opts.verbose)

	downloader, err := fetch.NewDownloader(bus)
	if err != nil {
		return err
	}
	defer downloader.Close()

	jobs := opts.jobs
	if opts.verbose {
		jobs = 1
	}

	distribIDs := make([]string, 0, len(cfg.Distribs))
	for id := range cfg.Distribs {
		distribIDs = append(distribIDs, id)
	}
	sort.Strings(distribIDs)

	for _, id := range distribIDs {
		err := buildDistrib(opts, cfg, id, bus, runner, downloader, jobs)
		if err != nil {
			return err
		}
		if err := bus.Check(); err != nil {
			return err
		}
	}
	return nil
}

func installSignalHandler(bus *cancel.Bus) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logrus.Warn("termination requested, cancelling in-flight builds")
		bus.RequestCancel()
	}()
}

// promptCleanup pauses in interactive mode so the work directory can be
// inspected before it is removed.
func promptCleanup(workRoot string) {
	fmt.Fprintf(os.Stderr, "build failed; work directory kept at %s\npress enter to clean it up: ", workRoot)
	bufio.NewReader(os.Stdin).ReadString('\n')
	os.RemoveAll(workRoot)
}
