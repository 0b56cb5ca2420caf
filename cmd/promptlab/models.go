package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/leandrotocalini/promptlab/internal/registry"
)

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			renderModels(cmd.OutOrStdout(), buildCatalog(cfg.Models))
			return nil
		},
	}
}

func renderModels(w io.Writer, catalog *registry.Registry) {
	bold := color.New(color.Bold)
	for _, m := range catalog.List() {
		bold.Fprintf(w, "%-40s", m.ID)
		fmt.Fprintf(w, " %-16s $%.5f/1k\n", m.Name, m.PricePer1kTokens)
		if m.Description != "" {
			fmt.Fprintf(w, "  %s\n", color.HiBlackString(m.Description))
		}
	}
}
