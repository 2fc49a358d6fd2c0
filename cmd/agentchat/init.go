package main

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/agentchat/internal/config"
)

const (
	backendOpenAICompatible = "provider.openai_compatible"
	backendAnthropic        = "provider.anthropic"
)

// initAnswers holds what config init asks for.
type initAnswers struct {
	Backend     string
	BaseURL     string
	Model       string
	APIKeyEnv   string
	Bind        string
	Transcripts bool
}

func defaultAnswers() initAnswers {
	return initAnswers{
		Backend: backendOpenAICompatible,
		BaseURL: "http://localhost:11435/v1",
		Model:   "deepseek-r1:8b",
		Bind:    "0.0.0.0:5001",
	}
}

// render produces the configuration file for the answers.
func (a initAnswers) render() ([]byte, error) {
	backend := map[string]any{"model": a.Model}
	switch a.Backend {
	case backendOpenAICompatible:
		backend["base_url"] = a.BaseURL
	case backendAnthropic:
		if a.BaseURL != "" {
			backend["base_url"] = a.BaseURL
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", a.Backend)
	}
	if a.APIKeyEnv != "" {
		backend["api_key_env"] = a.APIKeyEnv
	}

	modules := map[string]any{
		a.Backend:      backend,
		"gateway.http": map[string]any{"bind": a.Bind},
	}
	if a.Transcripts {
		modules["transcript.sqlite"] = map[string]any{"retention": "720h"}
	}

	return yaml.Marshal(map[string]any{
		"version": "1",
		"agent":   map[string]any{"system_prompt": "You are a helpful AI assistant."},
		"modules": modules,
	})
}

func (a initAnswers) validate() error {
	var errs []error
	if strings.TrimSpace(a.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if a.Backend == backendOpenAICompatible {
		if err := validateURL(a.BaseURL); err != nil {
			errs = append(errs, err)
		}
	}
	if err := validateBind(a.Bind); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateURL(s string) error {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL %q", s)
	}
	return nil
}

func validateBind(s string) error {
	if _, err := net.ResolveTCPAddr("tcp", s); err != nil {
		return fmt.Errorf("invalid bind address %q", s)
	}
	return nil
}

func configInitCmd() *cobra.Command {
	var (
		output   string
		defaults bool
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a new configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
			}

			var raw []byte
			if defaults {
				raw = []byte(config.DefaultYAML())
			} else {
				answers := defaultAnswers()
				if err := askAnswers(&answers); err != nil {
					return err
				}
				if err := answers.validate(); err != nil {
					return err
				}
				var err error
				if raw, err = answers.render(); err != nil {
					return err
				}
			}

			if _, err := config.Parse(raw, output); err != nil {
				return err
			}
			if err := os.WriteFile(output, raw, 0o600); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", config.FileName, "Destination file")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Write the built-in configuration without prompting")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

// askAnswers runs the interactive form.
func askAnswers(a *initAnswers) error {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Backend").
				Options(
					huh.NewOption("OpenAI-compatible (Ollama, vLLM, LM Studio)", backendOpenAICompatible),
					huh.NewOption("Anthropic", backendAnthropic),
				).
				Value(&a.Backend),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Description("Leave empty for the provider default.").
				Value(&a.BaseURL),
			huh.NewInput().
				Title("Model").
				Value(&a.Model).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("model is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("API key environment variable").
				Description("Optional. The key itself is never written to the file.").
				Value(&a.APIKeyEnv),
			huh.NewInput().
				Title("Listen address").
				Value(&a.Bind).
				Validate(validateBind),
			huh.NewConfirm().
				Title("Archive transcripts to SQLite?").
				Value(&a.Transcripts),
		),
	).WithTheme(huh.ThemeCharm())

	return form.Run()
}
