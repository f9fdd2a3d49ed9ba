package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/forgecrew/taskloop/internal/config"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactively configure a fresh config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard()
		},
	}
}

// runOnboard walks a first-run operator through the handful of settings
// taskloop can't infer on its own — who's allowed to run admin commands,
// where project work is jailed to, and which provider to start with —
// and writes the result to config.json. Everything else (provider API
// keys, channel tokens) is still meant to be supplied via environment
// variables at runtime, never written to disk here.
func runOnboard() error {
	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("%s already exists; onboard only writes a fresh config.\n", cfgPath)
		return nil
	}

	cfg := config.Default()

	var adminID, jailRoot, provider, apiKey string
	jailRoot = cfg.Sandbox.JailRoot

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Admin sender ID").
				Description("Discord username or Telegram user id allowed to run ,<command>").
				Value(&adminID),
			huh.NewInput().
				Title("Sandbox jail root").
				Description("Directory every project operation is confined to").
				Value(&jailRoot),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Default provider").
				Options(
					huh.NewOption("Anthropic", "anthropic"),
					huh.NewOption("OpenAI", "openai"),
					huh.NewOption("OpenRouter", "openrouter"),
					huh.NewOption("Gemini", "gemini"),
					huh.NewOption("Groq", "groq"),
					huh.NewOption("xAI", "xai"),
					huh.NewOption("DashScope", "dashscope"),
				).
				Value(&provider),
			huh.NewInput().
				Title("API key").
				Description("Not written to config.json — used only to show which environment variable to set").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("onboard form: %w", err)
	}

	if adminID != "" {
		cfg.System.Admin = append(cfg.System.Admin, adminID)
	}
	if jailRoot != "" {
		cfg.Sandbox.JailRoot = jailRoot
	}
	if provider != "" {
		cfg.Agents.Default = "developer"
		cfg.Agents.List["developer"] = config.AgentSpec{Provider: provider, Model: cfg.Agents.List["developer"].Model}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("Wrote %s.\n", cfgPath)
	if apiKey != "" && provider != "" {
		fmt.Printf("Set TASKLOOP_%s_API_KEY before running `taskloop serve`.\n", envPrefixForProvider(provider))
	}
	return nil
}

func envPrefixForProvider(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC"
	case "openai":
		return "OPENAI"
	case "openrouter":
		return "OPENROUTER"
	case "gemini":
		return "GEMINI"
	case "groq":
		return "GROQ"
	case "xai":
		return "XAI"
	case "dashscope":
		return "DASHSCOPE"
	default:
		return ""
	}
}
