package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"

	"github.com/s0up4200/reqflow/reqconfig"
)

const (
	serviceName    = "reqflow"
	defaultProfile = "default"
	tokenPrefix    = "token:"

	envKeyringBackend  = "REQFLOW_KEYRING_BACKEND"
	envKeyringPassword = "REQFLOW_KEYRING_PASSWORD"
	envCredentialsDir  = "REQFLOW_CREDENTIALS_DIR"
	envToken           = "REQFLOW_TOKEN"
)

// ErrNoToken is returned when no token is stored for a profile
var ErrNoToken = errors.New("no token stored - run 'reqflow auth set' first")

// openKeyring can be replaced in tests
var openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
	return keyring.Open(cfg)
}

var stdinHasTTY = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SetOpenKeyring replaces the keyring opener and returns a restore func
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

func keyringConfig() keyring.Config {
	cfg := keyring.Config{
		ServiceName: serviceName,
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv(envKeyringBackend)))
	if backend == "system" {
		return cfg
	}

	cfg.FileDir = keyringFileDir()
	cfg.FilePasswordFunc = keyringFilePassword

	// Headless Linux has no secret service, go straight to the file backend
	if backend == "file" || (runtime.GOOS == "linux" && os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "") {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	return cfg
}

func keyringFileDir() string {
	base := strings.TrimSpace(os.Getenv(envCredentialsDir))
	if base == "" {
		if dir, err := os.UserConfigDir(); err == nil {
			base = filepath.Join(dir, serviceName)
		} else {
			base = filepath.Join(os.TempDir(), serviceName)
		}
	}
	return filepath.Join(base, "keyring")
}

func keyringFilePassword(prompt string) (string, error) {
	if password, ok := os.LookupEnv(envKeyringPassword); ok && password != "" {
		return password, nil
	}
	if !stdinHasTTY() {
		return "", fmt.Errorf("set %s when using file keyring in non-interactive environments", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

func tokenKey(profile string) string {
	if profile == "" {
		profile = defaultProfile
	}
	return tokenPrefix + profile
}

// SaveToken stores a bearer token for profile in the OS keychain
func SaveToken(profile, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	if err := ring.Set(keyring.Item{Key: tokenKey(profile), Data: []byte(token)}); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// LoadToken returns the token for profile. REQFLOW_TOKEN takes precedence
// over the keychain.
func LoadToken(profile string) (string, error) {
	if token := strings.TrimSpace(os.Getenv(envToken)); token != "" {
		return token, nil
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return "", fmt.Errorf("failed to open keyring: %w", err)
	}
	item, err := ring.Get(tokenKey(profile))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return string(item.Data), nil
}

// ClearToken removes the token for profile. Removing a missing token is
// not an error.
func ClearToken(profile string) error {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}
	if err := ring.Remove(tokenKey(profile)); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	return nil
}

// HeaderResolver returns a computed header resolver holding the configured
// static headers plus the auth header for the profile's token. The token is
// looked up once, on first use; a missing token leaves the header out.
func (c *Config) HeaderResolver(lookup func(profile string) (string, error)) reqconfig.Resolver[map[string]string] {
	static := make(map[string]string, len(c.Request.Header))
	for k, v := range c.Request.Header {
		static[k] = v
	}
	auth := c.Auth
	token := sync.OnceValues(func() (string, error) {
		return lookup(auth.Profile)
	})

	return reqconfig.Computed(func(context.Context, *reqconfig.Call) (map[string]string, error) {
		header := make(map[string]string, len(static)+1)
		for k, v := range static {
			header[k] = v
		}

		tok, err := token()
		if errors.Is(err, ErrNoToken) {
			return header, nil
		}
		if err != nil {
			return nil, err
		}
		if tok == "" {
			return header, nil
		}
		if auth.Scheme != "" {
			tok = auth.Scheme + " " + tok
		}
		header[auth.Header] = tok
		return header, nil
	})
}
