package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/djlord-it/easy-views/internal/api"
	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/period"
)

func newCountCommand() *cobra.Command {
	var (
		periodStr  string
		unique     bool
		collection string
		store      string
	)

	cmd := &cobra.Command{
		Use:   "count <type> [id]",
		Short: "Print the view count of a subject or subject type",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}

			subject := domain.TypeRef(store, args[0])
			if len(args) == 2 {
				subject = domain.Ref(store, args[0], args[1])
			}

			b, err := openBackend(cfg)
			if err != nil {
				return err
			}
			defer b.close()

			deps, err := buildEngine(cfg, b.store, nil)
			if err != nil {
				return err
			}
			defer deps.Close()

			v := deps.engine.For(subject)
			if periodStr != "" {
				p, err := period.Parse(periodStr, time.Now())
				if err != nil {
					return fmt.Errorf("invalid --period: %w", err)
				}
				v = v.Period(p)
			}
			if unique {
				v = v.Unique()
			}
			if collection != "" {
				v = v.Collection(collection)
			}

			n, err := v.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	cmd.Flags().StringVar(&periodStr, "period", "", `time window, e.g. "past7days", "sub2hours" or "1514768400|1514775600"`)
	cmd.Flags().BoolVar(&unique, "unique", false, "count distinct visitors")
	cmd.Flags().StringVar(&collection, "collection", "", "restrict to a collection")
	cmd.Flags().StringVar(&store, "store", api.DefaultSubjectStore, "subject store discriminator")
	return cmd
}
