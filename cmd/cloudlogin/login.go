package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-cloudlogin/pkg/login"
	"github.com/jeremyhahn/go-cloudlogin/pkg/oauth"
)

const (
	outputJSON  = "json"
	outputToken = "token"
)

type tokenOutput struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int64      `json:"expires_in,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	IDToken      string     `json:"id_token,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	Subject      string     `json:"subject,omitempty"`
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser and print the issued tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputJSON && output != outputToken {
				return fmt.Errorf("unknown output format %q", output)
			}

			s, err := opts.settings(cmd)
			if err != nil {
				return &login.StageError{Stage: login.StageConfiguration, Err: err}
			}

			flowOpts := append([]login.Option{login.WithLogger(opts.logger)}, opts.loginOptions...)
			flow, err := login.New(s, flowOpts...)
			if err != nil {
				return &login.StageError{Stage: login.StageConfiguration, Err: err}
			}

			result, err := flow.Login(cmd.Context())
			if err != nil {
				return err
			}
			return printTokens(cmd, output, result)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "output format: json or token")
	return cmd
}

func printTokens(cmd *cobra.Command, output string, result *login.Result) error {
	out := cmd.OutOrStdout()
	if output == outputToken {
		_, err := fmt.Fprintln(out, result.Tokens.AccessToken)
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(newTokenOutput(result.Tokens, result.IDClaims))
}

func newTokenOutput(t *oauth.TokenSet, claims *oauth.IDTokenClaims) tokenOutput {
	o := tokenOutput{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
		RefreshToken: t.RefreshToken,
		IDToken:      t.IDToken,
		Scope:        t.Scope,
	}
	if !t.Expiry.IsZero() {
		expiry := t.Expiry.UTC()
		o.Expiry = &expiry
	}
	if claims != nil {
		o.Subject = claims.Subject
	}
	return o
}
