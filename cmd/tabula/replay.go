package main

import (
	"os"

	"github.com/aretw0/tabula/internal/cli"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <script.yaml>",
	Short: "Replay a recorded script without a model",
	Long: `Drives a session from a script of recorded decisions. With --expect, the
rendered transcript is compared against a golden file and differences are shown.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		source, _ := cmd.Flags().GetString("source")
		expect, _ := cmd.Flags().GetString("expect")
		update, _ := cmd.Flags().GetBool("update")
		jsonMode, _ := cmd.Flags().GetBool("json")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		return cli.Replay(ctx, cli.ReplayOptions{
			Config:     cfg,
			ScriptPath: args[0],
			Source:     source,
			Expect:     expect,
			Update:     update,
			JSON:       jsonMode,
			Out:        os.Stdout,
		})
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().String("source", "", "CSV file to load instead of the script's source")
	replayCmd.Flags().String("expect", "", "Golden transcript to compare against")
	replayCmd.Flags().Bool("update", false, "Rewrite the golden transcript")
	replayCmd.Flags().Bool("json", false, "Print progress as NDJSON events")
}
