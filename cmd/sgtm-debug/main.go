package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sgtm-tools/sgtm-debug/runner"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(out)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var notFound *runner.NotFoundError
	if errors.As(err, &notFound) {
		fmt.Fprintf(out, "Error: %s. Please install it with: %s\n", notFound, runner.InstallHint())
		return 1
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, errReported) {
		return 1
	}
	log.Error(err)
	return 1
}
