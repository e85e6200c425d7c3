package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jbigot/pkg-builder/internal/cli"
	"github.com/jbigot/pkg-builder/internal/models"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	rootCmd := cli.NewRootCmd()
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(0)
	}

	var sub *models.SubprocessError
	switch {
	case errors.Is(err, models.ErrCancelled):
		logrus.Warn("interrupted")
	case errors.As(err, &sub):
		fmt.Fprintf(os.Stderr, "command failed: %s\n", strings.Join(sub.Argv, " "))
		if sub.Output != "" {
			fmt.Fprintln(os.Stderr, sub.Output)
		}
		logrus.Error(err)
	default:
		logrus.Error(err)
	}
	os.Exit(models.ExitCode(err))
}
