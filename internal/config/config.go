// Package config binds lltop's CLI flags (spf13/cobra) and site-local
// settings file (spf13/viper) into a single FrontConfig, built from
// cobra flags the same way any subcommand's opts struct is -- plus a
// YAML settings file for the one thing that can't reasonably be a
// flag: the per-filesystem server list.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// FrontConfig holds every front-end CLI/settings option.
type FrontConfig struct {
	Interval time.Duration
	FQDN     bool

	GetHostCmd string
	GetJobCmd  string

	NoHeader   bool
	LegacyForm bool

	ServerList bool // positional args are server names, not a filesystem label

	LltopServPath string
	SSHPath       string
	ExecdSpool    string

	MetricsAddr string
}

// defaultServList is the hardcoded fallback, standing in for a site that
// hasn't supplied a servers.yaml -- same shape as hooks.c's
// lltop_get_serv_list hard-coded ranges: per filesystem, one numeric
// range of mds hosts and one of oss hosts.
var defaultServList = map[string][]string{
	"scratch": rangeServers("mds", 3, 4, "oss", 23, 72),
	"share":   rangeServers("mds", 1, 2, "oss", 1, 6),
	"work":    rangeServers("mds", 5, 6, "oss", 7, 20),
}

func rangeServers(mdsPrefix string, mdsLo, mdsHi int, ossPrefix string, ossLo, ossHi int) []string {
	var out []string
	for i := mdsLo; i <= mdsHi; i++ {
		out = append(out, fmt.Sprintf("%s%d", mdsPrefix, i))
	}
	for i := ossLo; i <= ossHi; i++ {
		out = append(out, fmt.Sprintf("%s%d", ossPrefix, i))
	}
	return out
}

// ServerListResolver maps a filesystem label to its server list, reading
// site-local overrides from a viper instance (a "servers" map of
// fs-name -> []string in servers.yaml) before falling back to
// defaultServList.
type ServerListResolver struct {
	v *viper.Viper
}

func NewServerListResolver(v *viper.Viper) *ServerListResolver {
	return &ServerListResolver{v: v}
}

// Servers returns the server list for fsName, as loaded from the
// "servers.<fsName>" viper key, falling back to the hardcoded default
// table, and erroring if neither has an entry.
func (r *ServerListResolver) Servers(fsName string) ([]string, error) {
	if r.v != nil {
		key := "servers." + fsName
		if r.v.IsSet(key) {
			servers := r.v.GetStringSlice(key)
			if len(servers) > 0 {
				return servers, nil
			}
		}
	}
	if servers, ok := defaultServList[fsName]; ok {
		return servers, nil
	}
	return nil, fmt.Errorf("config: unknown filesystem %q", fsName)
}

// BindFlags registers every front-end flag on cmd in the usual
// root.Flags().XxxVar(...) style, and returns the FrontConfig the flags
// populate once cmd.Execute() parses args.
func BindFlags(cmd *cobra.Command) *FrontConfig {
	cfg := &FrontConfig{}

	cmd.Flags().DurationVar(&cfg.Interval, "interval", 10*time.Second, "sampling interval")
	cmd.Flags().BoolVar(&cfg.FQDN, "fqdn", false, "keep fully-qualified hostnames in host resolution")
	cmd.Flags().StringVar(&cfg.GetHostCmd, "get-host", "", "external command to resolve client address to hostname")
	cmd.Flags().StringVar(&cfg.GetJobCmd, "get-job", "", "external command to resolve hostname to job id")
	cmd.Flags().BoolVar(&cfg.NoHeader, "no-header", false, "suppress the output header row")
	cmd.Flags().BoolVar(&cfg.LegacyForm, "legacy-format", false, "print fixed-width legacy output instead of a rendered table")
	cmd.Flags().BoolVarP(&cfg.ServerList, "server-list", "l", false, "treat positional arguments as server names instead of a filesystem label")
	cmd.Flags().StringVar(&cfg.LltopServPath, "lltop-serv", "/usr/local/bin/lltop-serv", "path to the sampler binary on remote servers")
	cmd.Flags().StringVar(&cfg.SSHPath, "ssh", "/usr/bin/ssh", "path to the remote shell binary")
	cmd.Flags().StringVar(&cfg.ExecdSpool, "execd-spool", "/share/sge6.2/execd_spool", "batch scheduler execd spool root")
	cmd.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", "", "if set, expose Prometheus metrics on this address")

	return cfg
}

// LoadSettings reads a servers.yaml-style settings file via viper: the
// given explicit path when it is non-empty, otherwise the first of
// ./servers.yaml and /etc/lltop/servers.yaml that exists. An explicit
// path is not combined with the search. A missing file is not an error --
// callers fall back to defaultServList.
func LoadSettings(explicitPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("LLTOP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName("servers")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/lltop")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: reading settings: %w", err)
		}
	}
	return v, nil
}
