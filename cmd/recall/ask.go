package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/recall/internal/domain"
)

func askCMD(env *string) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Build the index once and answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *env)
			if err != nil {
				return err
			}
			defer a.Close()
			defer func() { _ = a.logger.Sync() }()

			a.buildIndex(ctx)

			ans, err := a.query.Ask(ctx, strings.Join(args, " "), topK)
			if err != nil {
				if errors.Is(err, domain.ErrIndexNotReady) {
					return errors.New("index is not ready: the corpus is empty or could not be loaded")
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(ans)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of passages to retrieve")
	return cmd
}
