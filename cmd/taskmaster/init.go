package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/taskmaster/internal/config"
)

// initAnswers are the choices collected by `config init`.
type initAnswers struct {
	BackendURL string
	Timezone   string
	Bind       string
	Protect    bool // generate a bearer token for POST /run
	Archive    bool
	WebhookURL string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		BackendURL: "${TASKMASTER_BACKEND_URL}",
		Timezone:   "UTC",
		Bind:       "0.0.0.0:8000",
		Protect:    true,
	}
}

func configInitCmd() *cobra.Command {
	var (
		output string
		force  bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = config.SearchPaths()[0]
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			ans := defaultAnswers()
			if !yes {
				if err := askInit(&ans); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return errors.New("aborted")
					}
					return err
				}
			}

			token := ""
			if ans.Protect {
				var err error
				if token, err = newToken(); err != nil {
					return err
				}
			}
			data, err := renderConfig(ans, token)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(output), 0o700); err != nil {
				return fmt.Errorf("creating config directory: %w", err)
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			if token != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Manual runs require: Authorization: Bearer %s\n", token)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the file (default: user config directory)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept defaults without prompting")
	return cmd
}

func askInit(ans *initAnswers) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Base URL of the edge functions; ${VAR} references are kept as-is.").
				Value(&ans.BackendURL).
				Validate(validateBackendURL),
			huh.NewInput().
				Title("Timezone").
				Description("IANA zone for calendar schedules.").
				Value(&ans.Timezone).
				Validate(func(s string) error {
					_, err := time.LoadLocation(s)
					return err
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Gateway bind address").
				Value(&ans.Bind).
				Validate(func(s string) error {
					_, _, err := net.SplitHostPort(s)
					return err
				}),
			huh.NewConfirm().
				Title("Require a bearer token for manual runs?").
				Value(&ans.Protect),
			huh.NewConfirm().
				Title("Archive finished runs to SQLite?").
				Value(&ans.Archive),
			huh.NewInput().
				Title("Alert webhook URL").
				Description("Leave empty to only log alerts.").
				Value(&ans.WebhookURL),
		),
	).Run()
}

func validateBackendURL(s string) error {
	if s == "" {
		return errors.New("backend URL is required")
	}
	if s[0] == '$' {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q is not an http(s) URL", s)
	}
	return nil
}

func newToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// renderConfig produces the YAML document for ans. Secrets the wizard did
// not generate are left as environment references.
func renderConfig(ans initAnswers, token string) ([]byte, error) {
	gateway := map[string]any{
		"bind":         ans.Bind,
		"cors_origins": []string{"*"},
	}
	if token != "" {
		gateway["auth"] = map[string]any{"bearer_token": token}
	}

	alerts := map[string]any{"log": true}
	if ans.WebhookURL != "" {
		alerts["webhook"] = map[string]any{
			"url":    ans.WebhookURL,
			"secret": "${TASKMASTER_WEBHOOK_SECRET:-}",
		}
	}

	doc := map[string]any{
		"version": "1",
		"log":     map[string]any{"level": "info", "format": "text"},
		"scheduler": map[string]any{
			"tick_interval": "1s",
			"timezone":      ans.Timezone,
		},
		"backend": map[string]any{
			"url":         ans.BackendURL,
			"service_key": "${TASKMASTER_SERVICE_KEY:-}",
		},
		"alerts":  alerts,
		"gateway": gateway,
		"archive": map[string]any{"sqlite": map[string]any{"enabled": ans.Archive}},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}
	return append([]byte("# Generated by taskmaster config init.\n"), data...), nil
}
