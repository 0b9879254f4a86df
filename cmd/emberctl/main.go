package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danmuck/emberctl/internal/config"
	"github.com/danmuck/emberctl/internal/daemon"
	"github.com/danmuck/emberctl/internal/logging"
)

var (
	configPath string
	listenAddr string
	adminAddr  string
	treeFile   string
)

var rootCmd = &cobra.Command{
	Use:           "emberctl",
	Short:         "Ember+ provider serving a declarative control tree over S101",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.ConfigureRuntime()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept consumer connections until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := daemon.New(cfg)
		if err != nil {
			return err
		}
		return svc.Run()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load the config and build the tree without serving",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		svc, err := daemon.New(cfg)
		if err != nil {
			return err
		}
		tree := cfg.TreeFile
		if tree == "" {
			tree = "(built-in sample)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: tree %s with %d elements, %d streamed parameters\n",
			tree, svc.Provider().Tree().Len()-1, svc.Provider().Streams().Len())
		return nil
	},
}

var templateCmd = &cobra.Command{
	Use:       "template [provider|tree]",
	Short:     "Print a sample config file",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{config.KindProvider, config.KindTree},
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := config.Template(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to emberctl config.toml")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "consumer listen address (overrides listen_addr)")
	rootCmd.PersistentFlags().StringVar(&adminAddr, "admin", "", "admin HTTP address, \"off\" to disable (overrides admin_addr)")
	rootCmd.PersistentFlags().StringVar(&treeFile, "tree", "", "tree template path (overrides tree_file)")
	rootCmd.AddCommand(serveCmd, validateCmd, templateCmd)
}

// resolveConfig loads --config when given and applies flag overrides.
func resolveConfig(cmd *cobra.Command) (daemon.Config, error) {
	cfg := daemon.DefaultConfig()
	if configPath != "" {
		loaded, err := loadServiceConfig(configPath)
		if err != nil {
			return daemon.Config{}, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Transport.ListenAddr = strings.TrimSpace(listenAddr)
	}
	if flags.Changed("admin") {
		cfg.Admin.ListenAddr = strings.TrimSpace(adminAddr)
		if strings.EqualFold(cfg.Admin.ListenAddr, "off") {
			cfg.Admin.ListenAddr = ""
		}
	}
	if flags.Changed("tree") {
		cfg.TreeFile = strings.TrimSpace(treeFile)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "emberctl: %v\n", err)
		os.Exit(1)
	}
}
