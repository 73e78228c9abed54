package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"oshimaint/internal/catalog"
	"oshimaint/internal/services"
	"oshimaint/internal/store"
)

func newCelebritiesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "celebrities",
		Aliases: []string{"celebs"},
		Short:   "Inspect celebrities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List celebrities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				celebrities, err := st.ListCelebrities(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if celebrities == nil {
						celebrities = []catalog.Celebrity{}
					}
					return writeJSON(cmd, celebrities)
				}
				if len(celebrities) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No celebrities")
					return nil
				}
				rows := make([][]string, 0, len(celebrities))
				for _, c := range celebrities {
					rows = append(rows, []string{c.ID, c.Name, c.Slug, string(c.Type)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Slug", "Type"}, rows, nil))
				return nil
			})
		},
	})
	return cmd
}

// resolveCelebrity accepts a slug or an ID. An empty ref resolves to nil.
func resolveCelebrity(ctx context.Context, st store.Store, ref string) (*catalog.Celebrity, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	celebrity, err := st.FindCelebrityBySlug(ctx, ref)
	if err == nil {
		return celebrity, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}
	celebrity, err = st.GetCelebrity(ctx, ref)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, fmt.Errorf("celebrity %q: %w", ref, services.ErrNotFound)
		}
		return nil, err
	}
	return celebrity, nil
}
