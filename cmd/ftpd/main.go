// Command ftpd runs a jailed FTP server.
//
// Usage:
//
//	ftpd --init-config              # write a sample config to the default path
//	ftpd --config /etc/ftpd.yaml    # run
//	ftpd --hash-password            # print a bcrypt hash for a users entry
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/gonzalop/ftpjail/internal/config"
	"github.com/gonzalop/ftpjail/internal/logging"
	"github.com/gonzalop/ftpjail/internal/metrics"
	"github.com/gonzalop/ftpjail/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ftpd: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	initConfig   bool
	force        bool
	hashPassword bool
	logLevel     string
	address      string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := pflag.NewFlagSet("ftpd", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.configPath, "config", "c", "", "Path to config file (default "+config.GetDefaultConfigPath()+")")
	fs.BoolVar(&o.initConfig, "init-config", false, "Write a sample config file and exit")
	fs.BoolVar(&o.force, "force", false, "Overwrite an existing file with --init-config")
	fs.BoolVar(&o.hashPassword, "hash-password", false, "Read a password and print its bcrypt hash")
	fs.StringVar(&o.logLevel, "log-level", "", "Override the log level (DEBUG, INFO, WARN, ERROR)")
	fs.StringVarP(&o.address, "address", "a", "", "Override the listen address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return &o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	switch {
	case o.hashPassword:
		return printHash(stdin, stdout)
	case o.initConfig:
		path := o.configPath
		if path == "" {
			path = config.GetDefaultConfigPath()
		}
		if err := config.InitConfigToPath(path, o.force); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Configuration written to %s\n", path)
		return nil
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = strings.ToUpper(o.logLevel)
	}
	if o.address != "" {
		cfg.Server.Address = o.address
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	return serve(ctx, cfg, nil)
}

// printHash reads one password and prints its bcrypt hash. A terminal gets a
// hidden prompt; anything else is read as a single line.
func printHash(stdin io.Reader, stdout io.Writer) error {
	var pass string
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		pass = string(b)
	} else {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return fmt.Errorf("failed to read password: %w", err)
		}
		pass = strings.TrimRight(line, "\r\n")
	}
	if pass == "" {
		return errors.New("empty password")
	}

	hash, err := server.HashPassword(pass)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hash)
	return nil
}

// serve runs the FTP server until ctx is done. When ready is not nil it
// receives the bound control address.
func serve(ctx context.Context, cfg *config.Config, ready chan<- net.Addr) error {
	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	users, err := config.BuildDirectory(cfg)
	if err != nil {
		return err
	}

	opts := append(config.ServerOptions(&cfg.Server),
		server.WithUsers(users),
		server.WithLogger(logger),
	)

	if cfg.Server.TransferLog != "" {
		f, err := os.OpenFile(cfg.Server.TransferLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open transfer log: %w", err)
		}
		defer f.Close()
		opts = append(opts, server.WithTransferLog(f))
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, server.WithMetrics(metrics.New(reg)))

		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler(reg))
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Address, "path", cfg.Metrics.Path)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	srv, err := server.NewServer(cfg.Server.Address, opts...)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Address, err)
	}
	logger.Info("FTP server listening", "addr", ln.Addr().String(), "accounts", users.Len())
	if ready != nil {
		ready <- ln.Addr()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, initiating graceful shutdown")
	case err := <-serverDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}
	if err := <-serverDone; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
