package main

import (
	"os"
	"strings"

	"github.com/aretw0/tabula/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <source.csv> <request...>",
	Short: "Answer a request about a CSV file",
	Long: `Loads the CSV file and lets the model analyse it until it answers.
The session is saved after every command; pass --session to resume it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		imageDir, _ := cmd.Flags().GetString("images")
		maxSteps, _ := cmd.Flags().GetInt("max-steps")
		debug, _ := cmd.Flags().GetBool("debug")

		if len(args) < 2 && sessionID == "" {
			return cmd.Usage()
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Run(ctx, cli.RunOptions{
			Config:    cfg,
			Source:    args[0],
			Request:   strings.Join(args[1:], " "),
			SessionID: sessionID,
			JSON:      jsonMode,
			ImageDir:  imageDir,
			MaxSteps:  maxSteps,
			Debug:     debug,
			Out:       os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "", "Session ID to create or resume")
	runCmd.Flags().Bool("json", false, "Print progress as NDJSON events")
	runCmd.Flags().String("images", "", "Directory to save chart images into")
	runCmd.Flags().Int("max-steps", 0, "Maximum commands per run (default from config)")
	runCmd.Flags().Bool("debug", false, "Log lifecycle events")
}
