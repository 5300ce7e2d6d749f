package main

import (
	"context"
	"fmt"

	"github.com/aretw0/tabula/internal/cli"
	"github.com/aretw0/tabula/pkg/domain"
	"github.com/aretw0/tabula/pkg/ports"
	"github.com/spf13/cobra"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the table and series operations the model can call",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		idle := ports.ConsultantFunc(func(context.Context, *domain.Transcript) (domain.Decision, error) {
			return domain.Decision{}, nil
		})
		engine, err := cli.NewEngine(cfg, idle, cli.NewLogger(cfg, false))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), engine.Operations())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(opsCmd)
}
