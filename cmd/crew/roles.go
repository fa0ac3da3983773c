package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/isrc101/crew/internal/config"
	"github.com/isrc101/crew/internal/roles"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the role catalog",
	Long: `Roles prints every role the planner can assign tasks to: the built-in
catalog plus any overlay from the configured roles file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		registry := roles.NewRegistry()
		if cfg.RolesFile != "" {
			if err := registry.LoadFile(cfg.RolesFile); err != nil {
				return fmt.Errorf("loading roles file: %w", err)
			}
		}
		for _, spec := range registry.List() {
			fmt.Printf("%s  %s\n", color.New(color.Bold).Sprintf("%-12s", spec.Name), spec.Description)
			if spec.Mode != "" && spec.Mode != "agent" {
				fmt.Printf("%-12s  mode: %s\n", "", spec.Mode)
			}
			if spec.BudgetMultiplier != 0 && spec.BudgetMultiplier != 1.0 {
				fmt.Printf("%-12s  budget multiplier: %.2g\n", "", spec.BudgetMultiplier)
			}
		}
		return nil
	},
}
