package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeremyhahn/go-cloudlogin/pkg/config"
	"github.com/jeremyhahn/go-cloudlogin/pkg/login"
)

// rootOptions holds the global flags and the seams tests replace.
type rootOptions struct {
	debug      bool
	configFile string
	envFile    string

	lookupEnv    func(string) (string, bool)
	loginOptions []login.Option
	logger       *zap.Logger
}

func newRootOptions() *rootOptions {
	return &rootOptions{lookupEnv: os.LookupEnv}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloudlogin",
		Short: "Sign in to the cloud platform from the terminal",
		Long: `cloudlogin resolves the identity provider for a customer, opens the
browser for an OAuth 2.0 authorization code flow with PKCE and prints the
tokens issued by the provider.

Settings come from flags, environment variables, a .env file and a YAML
config file, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logger != nil {
				return nil
			}
			logger, err := newLogger(opts.debug)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVar(&opts.debug, "debug", false, "enable development logging at debug level")
	pf.StringVar(&opts.configFile, "config", "", "YAML config file (default $HOME/.config/cloudlogin/config.yaml)")
	pf.StringVar(&opts.envFile, "env-file", "", "dotenv file (default ./.env)")
	config.BindFlags(pf)

	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newDiscoverCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// newLogger builds a production JSON logger, or a development console
// logger at debug level when debug is set.
func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// settings loads configuration and applies the flags set on cmd.
func (o *rootOptions) settings(cmd *cobra.Command) (*config.Settings, error) {
	s, err := config.Load(config.LoadOptions{
		ConfigFile: o.configFile,
		EnvFile:    o.envFile,
		LookupEnv:  o.lookupEnv,
	})
	if err != nil {
		return nil, err
	}
	if err := config.ApplyFlags(s, cmd.Flags()); err != nil {
		return nil, err
	}
	return s, nil
}
