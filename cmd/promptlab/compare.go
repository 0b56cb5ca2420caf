package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leandrotocalini/promptlab/internal/dispatch"
	"github.com/leandrotocalini/promptlab/internal/metrics"
)

const apiKeyEnv = "OPENROUTER_API_KEY"

var errNoAPIKey = errors.New("an OpenRouter API key is required (--api-key, " + apiKeyEnv + ", or interactive prompt)")

func compareCmd() *cobra.Command {
	var (
		apiKey string
		models []string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "compare <prompt>",
		Short: "Send a prompt to several models and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			key, err := resolveAPIKey(apiKey, os.Getenv, os.Stdin, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ids := models
			if all || len(ids) == 0 {
				ids = nil
				for _, m := range a.catalog.List() {
					ids = append(ids, m.ID)
				}
			}

			out := cmd.OutOrStdout()
			results, err := a.orch.DispatchObserved(context.Background(), dispatch.Request{
				Prompt:     strings.Join(args, " "),
				ModelIDs:   ids,
				Credential: key,
			}, progressObserver(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			renderCompare(out, dispatch.Ordered(results, ids))
			summary := dispatch.Summarize(results)
			renderSummary(out, summary)
			if summary.AllCredentialErrors {
				return errors.New("every model rejected the API key")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "OpenRouter API key (default: $"+apiKeyEnv+" or prompt)")
	cmd.Flags().StringSliceVarP(&models, "model", "m", nil, "Model ID to query (repeatable; default: whole catalog)")
	cmd.Flags().BoolVar(&all, "all", false, "Query every catalog model")
	return cmd
}

// resolveAPIKey takes the key from the flag, then the environment, then a
// hidden terminal prompt. The key is never echoed or stored.
func resolveAPIKey(flagValue string, getenv func(string) string, in *os.File, prompt io.Writer) (string, error) {
	if k := strings.TrimSpace(flagValue); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(getenv(apiKeyEnv)); k != "" {
		return k, nil
	}
	if in == nil || !term.IsTerminal(int(in.Fd())) {
		return "", errNoAPIKey
	}

	fmt.Fprint(prompt, "OpenRouter API key: ")
	raw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read api key: %w", err)
	}
	k := strings.TrimSpace(string(raw))
	if k == "" {
		return "", errNoAPIKey
	}
	return k, nil
}

// progressObserver prints one line per settled model.
func progressObserver(w io.Writer) dispatch.Observer {
	return func(r dispatch.Result) {
		if !r.Settled() {
			return
		}
		mark := color.GreenString("✓")
		if r.Failed() {
			mark = color.RedString("✗")
		}
		fmt.Fprintf(w, "%s %s %s\n", mark, r.ModelID, color.HiBlackString(metrics.FormatLatency(*r.LatencyMs)))
	}
}

func renderCompare(w io.Writer, results []dispatch.Result) {
	for _, r := range results {
		header := color.New(color.Bold, color.FgCyan)
		header.Fprintf(w, "== %s ", r.ModelID)
		fmt.Fprintln(w, strings.Repeat("=", max(0, 56-len(r.ModelID))))

		if r.Failed() {
			fmt.Fprintf(w, "%s %s\n\n", color.RedString("error:"), r.ErrorMessage)
			continue
		}

		fmt.Fprintln(w, r.ResponseText)
		fmt.Fprintf(w, "%s\n\n", color.HiBlackString("%s · %d tokens · %s",
			metrics.FormatLatency(*r.LatencyMs), *r.TokenCount, metrics.FormatCost(*r.EstimatedCost)))
	}
}

func renderSummary(w io.Writer, s dispatch.Summary) {
	ok := color.GreenString("%d succeeded", s.Succeeded)
	failed := fmt.Sprintf("%d failed", s.Failed)
	if s.Failed > 0 {
		failed = color.RedString(failed)
	}
	fmt.Fprintf(w, "%s, %s · %d tokens · %s total\n", ok, failed, s.TotalTokens, metrics.FormatCost(s.TotalCost))
}
