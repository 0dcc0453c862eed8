package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"screenai-backend/internal/markdown"
)

var renderPlain bool

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Render reply markdown the way the chat panel shows it",
	Long:  `Reads markdown from a file, or stdin when no file is given, and prints the panel HTML.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		src, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read markdown: %w", err)
		}

		doc := markdown.Parse(string(src))
		if renderPlain {
			fmt.Fprintln(cmd.OutOrStdout(), doc.PlainText())
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), doc.HTML())
		return nil
	},
}

func init() {
	renderCmd.Flags().BoolVar(&renderPlain, "text", false, "Print plain text instead of HTML")
}
