package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gonzalop/ftpjail/server"
)

// BuildDirectory turns the configured accounts into a server.UserDirectory.
// Relative roots are made absolute against the working directory and missing
// roots of loginable accounts are created.
func BuildDirectory(cfg *Config) (*server.UserDirectory, error) {
	accounts := make([]server.Account, 0, len(cfg.Users))
	for _, u := range cfg.Users {
		role, err := server.ParseRole(u.Role)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Name, err)
		}
		root, err := filepath.Abs(u.Root)
		if err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Name, err)
		}
		if role == server.RoleNormal {
			if err := os.MkdirAll(root, 0o755); err != nil {
				return nil, fmt.Errorf("user %q: failed to create root: %w", u.Name, err)
			}
		}
		accounts = append(accounts, server.Account{
			Name:     u.Name,
			Password: u.Password,
			Role:     role,
			RootPath: root,
		})
	}
	return server.NewUserDirectory(accounts...)
}

// ServerOptions maps the server section onto server options. The account
// table, logger, metrics and transfer log are wired by the caller.
func ServerOptions(cfg *ServerConfig) []server.Option {
	opts := []server.Option{
		server.WithDataConnTimeout(cfg.DataConnTimeout),
		server.WithMaxIdleTime(cfg.IdleTimeout),
		server.WithReadTimeout(cfg.ReadTimeout),
		server.WithWriteTimeout(cfg.WriteTimeout),
		server.WithMaxConnections(cfg.MaxConnections, cfg.MaxConnectionsPerIP),
		server.WithBandwidthLimit(cfg.BandwidthLimit, cfg.BandwidthLimitPerUser),
	}
	if cfg.WelcomeMessage != "" {
		opts = append(opts, server.WithWelcomeMessage(cfg.WelcomeMessage))
	}
	if cfg.PublicHost != "" {
		opts = append(opts, server.WithPublicHost(cfg.PublicHost))
	}
	if cfg.DataPort != 0 {
		opts = append(opts, server.WithDataPort(cfg.DataPort))
	}
	if cfg.PassivePortMin != 0 {
		opts = append(opts, server.WithPassivePortRange(cfg.PassivePortMin, cfg.PassivePortMax))
	}

	disabled := append([]string(nil), cfg.DisabledCommands...)
	if cfg.ReadOnly {
		disabled = append(disabled, server.WriteCommands...)
	}
	if len(disabled) > 0 {
		opts = append(opts, server.WithDisableCommands(disabled...))
	}
	return opts
}
