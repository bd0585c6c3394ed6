package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fpt/klein-bot/internal/config"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter config interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.path()
			if _, err := os.Stat(path); err == nil {
				confirm := promptui.Prompt{
					Label:     fmt.Sprintf("%s exists. Overwrite", path),
					IsConfirm: true,
				}
				if _, err := confirm.Run(); err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), "Keeping the existing config.")
					return nil
				}
			}

			cfg, err := promptConfig()
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Config written to %s\n", path)
			return nil
		},
	}
}

func promptConfig() (*config.Config, error) {
	cfg := config.Default()

	ask := func(label, def string, mask rune) (string, error) {
		p := promptui.Prompt{Label: label, Default: def, Mask: mask, AllowEdit: true}
		v, err := p.Run()
		if errors.Is(err, promptui.ErrInterrupt) {
			return "", errors.New("init cancelled")
		}
		return strings.TrimSpace(v), err
	}
	choose := func(label string, items []string) (string, error) {
		s := promptui.Select{Label: label, Items: items}
		_, v, err := s.Run()
		if errors.Is(err, promptui.ErrInterrupt) {
			return "", errors.New("init cancelled")
		}
		return v, err
	}

	var err error
	if cfg.Transport, err = choose("Transport", []string{"discord", "console"}); err != nil {
		return nil, err
	}
	if cfg.Transport == "discord" {
		if cfg.Discord.Token, err = ask("Discord bot token", "", '*'); err != nil {
			return nil, err
		}
	}
	if cfg.Prefix, err = ask("Command prefix", cfg.Prefix, 0); err != nil {
		return nil, err
	}
	if cfg.Owner.Name, err = ask("Owner name", cfg.Owner.Name, 0); err != nil {
		return nil, err
	}
	if cfg.Owner.Number, err = ask("Owner chat id (reports go here)", "", 0); err != nil {
		return nil, err
	}
	if cfg.Owner.Phone, err = ask("Owner contact shown to users", "", 0); err != nil {
		return nil, err
	}
	if cfg.AI.Backend, err = choose("AI backend", []string{"gemini", "anthropic", "openai", "ollama"}); err != nil {
		return nil, err
	}
	if cfg.AI.Model, err = ask("AI model", defaultModel(cfg.AI.Backend), 0); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultModel(backend string) string {
	switch backend {
	case "anthropic":
		return "claude-sonnet-4-5"
	case "openai":
		return "gpt-4.1-mini"
	case "ollama":
		return "gpt-oss:latest"
	default:
		return "gemini-2.5-flash"
	}
}
