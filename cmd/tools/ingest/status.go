package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/medrag/backend/internal/service/qa"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many chunks the collection holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			index, err := qa.OpenVectorIndex(ctx, cfg.Retrieval)
			if err != nil {
				return err
			}
			defer index.Close()

			count, err := index.CountDocuments(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, sectionStyle.Render("Collection "+cfg.Retrieval.Collection))
			if count == 0 {
				fmt.Fprintln(out, warningStyle.Render("Empty: the chatbot will report the QA chain as unavailable"))
				return nil
			}
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%d chunks indexed", count)))
			return nil
		},
	}
}
