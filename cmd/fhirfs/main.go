// Command fhirfs mounts a remote FHIR REST server as a POSIX filesystem.
//
// Usage: fhirfs [--config path] [--read-only] [--debug] <mountpoint> <fhir_base_url>
//
// fhir_base_url is an http(s) URL, or the literal "offline" to mount
// without contacting a server (spec §6). Exit codes: 0 on clean unmount,
// 1 on mount failure, 2 when the capability statement is unreachable for
// a networked mount.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/fhirfs/fhirfs"
	"github.com/fhirfs/fhirfs/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML config file (default: $XDG_CONFIG_HOME/fhirfs/config.yaml)")
	readOnly := flag.Bool("read-only", false, "reject every write-side operation")
	debug := flag.Bool("debug", false, "log every FUSE callback at debug level")
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: fhirfs <mountpoint> <fhir_base_url>")
		return 1
	}
	mountpoint, baseURL := args[0], args[1]

	cfg, err := config.Load(*configPath, config.Overrides{
		FHIRBaseURL: baseURL,
		Mountpoint:  mountpoint,
		ReadOnly:    *readOnly,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fhirfs: %v\n", err)
		return 1
	}

	log := newLogger(cfg.Log)
	entry := log.WithField("component", "fhirfs")

	opts := fhirfs.OptionsFromConfig(cfg)
	opts.Debug = *debug

	fsys, err := fhirfs.Mount(opts, entry)
	if err != nil {
		if errors.Is(err, fhirfs.ErrCapabilityUnreachable) {
			entry.WithError(err).Error("capability statement unreachable")
			return 2
		}
		entry.WithError(err).Error("mount failed")
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		entry.Info("received signal, unmounting")
		if err := fsys.Unmount(); err != nil {
			entry.WithError(err).Warn("unmount failed")
		}
	}()

	if err := fsys.Wait(); err != nil {
		entry.WithError(err).Error("wait failed")
		return 1
	}

	stats := fsys.Stats()
	entry.WithFields(logrus.Fields{
		"operations":    stats.Operations,
		"bytes_read":    stats.BytesRead,
		"bytes_written": stats.BytesWritten,
		"errors":        stats.Errors,
	}).Info("unmounted cleanly")
	return 0
}

// newLogger builds a logrus.Logger per cfg.Log, grounded on
// _examples/latentloop-latentfs's practice of constructing one instance
// at startup and threading it through the daemon rather than relying on
// package-level logger functions.
func newLogger(cfg config.Log) *logrus.Logger {
	log := logrus.New()

	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch cfg.Output {
	case "stdout":
		log.SetOutput(os.Stdout)
	case "stderr", "":
		log.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.SetOutput(os.Stderr)
			log.WithError(err).Warnf("could not open log output %q, falling back to stderr", cfg.Output)
			break
		}
		log.SetOutput(f)
	}

	return log
}
