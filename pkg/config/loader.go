package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/cloudlogin"
	configFileName = "config.yaml"

	// DefaultEnvFile is the .env file read from the working directory.
	DefaultEnvFile = ".env"
)

// LoadOptions control where Load looks for settings.
type LoadOptions struct {
	// ConfigFile is a YAML file. Empty uses DefaultConfigPath if it exists.
	ConfigFile string

	// EnvFile is a dotenv file. Empty uses DefaultEnvFile if it exists.
	EnvFile string

	// LookupEnv reads the process environment. Default: os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// DefaultConfigPath returns ~/.config/cloudlogin/config.yaml, or "" when the
// home directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, userConfigDir, configFileName)
}

// Load merges defaults, the YAML file, the .env file and the environment.
// It does not validate the result; see Settings.Validate.
func Load(opts LoadOptions) (*Settings, error) {
	s := Default()

	explicitConfig := opts.ConfigFile != ""
	configFile := opts.ConfigFile
	if !explicitConfig {
		configFile = DefaultConfigPath()
	}
	if configFile != "" {
		if err := loadYAML(configFile, s, explicitConfig); err != nil {
			return nil, err
		}
	}

	explicitEnv := opts.EnvFile != ""
	envFile := opts.EnvFile
	if !explicitEnv {
		envFile = DefaultEnvFile
	}
	dotenv, err := readEnvFile(envFile, explicitEnv)
	if err != nil {
		return nil, err
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(name string) (string, bool) {
		if v, ok := lookup(name); ok {
			return v, true
		}
		v, ok := dotenv[name]
		return v, ok
	}

	if err := applyEnv(s, env); err != nil {
		return nil, err
	}
	return s, nil
}

func loadYAML(path string, s *Settings, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("%w: reading %s: %v", ErrInvalidConfiguration, path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfiguration, path, err)
	}
	return nil
}

func readEnvFile(path string, required bool) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidConfiguration, path, err)
	}
	return values, nil
}

// envVar binds environment variable names, first match wins, to a setting.
type envVar struct {
	names []string
	set   func(s *Settings, v string) error
}

var envVars = []envVar{
	{[]string{"CUSTOMER_ID"}, setString(func(s *Settings) *string { return &s.CustomerID })},
	{[]string{"CLIENT_ID"}, setString(func(s *Settings) *string { return &s.ClientID })},
	{[]string{"CLIENT_SECRET"}, setString(func(s *Settings) *string { return &s.ClientSecret })},
	{[]string{"CLIENT_AUTH"}, setString(func(s *Settings) *string { return &s.ClientAuth })},
	{[]string{"REDIRECT_URI"}, setString(func(s *Settings) *string { return &s.RedirectURI })},
	{[]string{"PLATFORM_APPLICATION_ID", "CITRIX_APPLICATION_ID"}, setString(func(s *Settings) *string { return &s.PlatformApplicationID })},
	{[]string{"CUSTOMER_DISCOVERY_URL"}, setString(func(s *Settings) *string { return &s.CustomerDiscoveryURL })},
	{[]string{"OPENID_CONFIGURATION_URL"}, setString(func(s *Settings) *string { return &s.OpenIDConfigurationURL })},
	{[]string{"APPLICATION_ID_HEADER"}, setString(func(s *Settings) *string { return &s.ApplicationIDHeader })},
	{[]string{"CHALLENGE_ENCODING"}, setString(func(s *Settings) *string { return &s.ChallengeEncoding })},
	{[]string{"CALLBACK_TIMEOUT"}, setDuration(func(s *Settings) *time.Duration { return &s.CallbackTimeout })},
	{[]string{"HTTP_TIMEOUT"}, setDuration(func(s *Settings) *time.Duration { return &s.HTTPTimeout })},
	{[]string{"VERIFY_ID_TOKEN"}, setBool(func(s *Settings) *bool { return &s.VerifyIDToken })},
	{[]string{"SKIP_BROWSER"}, setBool(func(s *Settings) *bool { return &s.SkipBrowser })},
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		for _, name := range ev.names {
			v, ok := lookup(name)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			if err := ev.set(s, strings.TrimSpace(v)); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfiguration, name, err)
			}
			break
		}
	}
	return nil
}

func setString(field func(*Settings) *string) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		*field(s) = v
		return nil
	}
}

func setDuration(field func(*Settings) *time.Duration) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		d, err := parseDuration(v)
		if err != nil {
			return err
		}
		*field(s) = d
		return nil
	}
}

func setBool(field func(*Settings) *bool) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(s) = b
		return nil
	}
}

// parseDuration accepts Go durations ("90s", "10m") or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
