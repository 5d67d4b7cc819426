// Command auspice serves nextstrain datasets and narratives to the auspice client, and converts and
// inspects them.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nextstrain/auspice/cmd/auspice/daemon"
)

// Exit codes of the auspice command.
const (
	exitOK    = 0
	exitError = 1
	// exitUsage is returned when the command line could not be parsed.
	exitUsage = 2
)

func main() {
	a, err := daemon.New()
	if err != nil {
		slog.Error("Could not set up auspice", "err", err)
		os.Exit(exitError)
	}

	os.Exit(run(a))
}

type app interface {
	Run() error
	UsageError() bool
	Hup() bool
	Quit()
}

func run(a app) int {
	defer installSignalHandler(a)()

	if err := a.Run(); err != nil {
		slog.Error(err.Error())

		if a.UsageError() {
			return exitUsage
		}
		return exitError
	}

	return exitOK
}

// installSignalHandler quits a on SIGINT and SIGTERM. SIGHUP is passed to a, which rescans the data
// directories of a view server. The returned function stops the handler.
func installSignalHandler(a app) func() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			switch v, ok := <-c; v {
			case syscall.SIGINT, syscall.SIGTERM:
				a.Quit()
				return
			case syscall.SIGHUP:
				if a.Hup() {
					a.Quit()
					return
				}
			default:
				// channel was closed: we exited
				if !ok {
					slog.Debug("Signal channel closed")
					return
				}
			}
		}
	}()

	return func() {
		signal.Stop(c)
		close(c)
		wg.Wait()
	}
}
