package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-cloudlogin/pkg/config"
	"github.com/jeremyhahn/go-cloudlogin/pkg/discovery"
	"github.com/jeremyhahn/go-cloudlogin/pkg/httpclient"
)

type metadataOutput struct {
	CustomerID            string   `yaml:"customer_id"`
	ApplicationID         string   `yaml:"application_id"`
	ACRValues             string   `yaml:"acr_values"`
	DiscoveryEndpoint     string   `yaml:"discovery_endpoint"`
	AuthorizationEndpoint string   `yaml:"authorization_endpoint"`
	TokenEndpoint         string   `yaml:"token_endpoint"`
	Issuer                string   `yaml:"issuer,omitempty"`
	JWKSURI               string   `yaml:"jwks_uri,omitempty"`
	CodeChallengeMethods  []string `yaml:"code_challenge_methods_supported,omitempty"`
	ResponseModes         []string `yaml:"response_modes_supported,omitempty"`
}

func newDiscoverCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Resolve and print the identity provider configuration for a customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.settings(cmd)
			if err != nil {
				return err
			}
			if s.CustomerID == "" || s.PlatformApplicationID == "" {
				return fmt.Errorf("%w: customer_id and platform_application_id are required", config.ErrInvalidConfiguration)
			}

			resolver, err := discovery.NewResolver(discovery.Config{
				CustomerURLTemplate:    s.CustomerDiscoveryURL,
				OpenIDConfigurationURL: s.OpenIDConfigurationURL,
				ApplicationIDHeader:    s.ApplicationIDHeader,
				HTTPClient:             httpclient.New(httpclient.Options{Timeout: s.HTTPTimeout}),
				Logger:                 opts.logger,
			})
			if err != nil {
				return err
			}

			md, err := resolver.Resolve(cmd.Context(), s.CustomerID, s.PlatformApplicationID)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(metadataOutput{
				CustomerID:            md.CustomerID,
				ApplicationID:         md.ApplicationID,
				ACRValues:             md.ACRValues,
				DiscoveryEndpoint:     md.DiscoveryEndpoint,
				AuthorizationEndpoint: md.AuthorizationEndpoint,
				TokenEndpoint:         md.TokenEndpoint,
				Issuer:                md.Issuer,
				JWKSURI:               md.JWKSURI,
				CodeChallengeMethods:  md.CodeChallengeMethods,
				ResponseModes:         md.ResponseModes,
			})
		},
	}
}
