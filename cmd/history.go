package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/example/slotchaser/internal/config"
	"github.com/example/slotchaser/internal/db"
	"github.com/example/slotchaser/internal/journal"
	"github.com/example/slotchaser/internal/migrate"
	"github.com/spf13/cobra"
)

type historyRow struct {
	Instance  string    `json:"instance"`
	URL       string    `json:"url"`
	Date      string    `json:"date"`
	Phase     string    `json:"phase"`
	NextPhase string    `json:"next_phase"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

func newHistoryCmd() *cobra.Command {
	var (
		instance string
		limit    int
		last     bool
		asJSON   bool
	)

	c := &cobra.Command{
		Use:   "history",
		Short: "List recent journaled steps (needs SLOTCHASER_DATABASE_URL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("SLOTCHASER_DATABASE_URL is not set")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}

			repo := journal.NewRepo(d)
			var attempts []journal.Attempt
			if last {
				if instance == "" {
					return fmt.Errorf("--last needs --instance")
				}
				a, err := repo.Last(ctx, instance)
				if db.IsNotFound(err) {
					return fmt.Errorf("no steps recorded for instance %s", instance)
				}
				if err != nil {
					return err
				}
				attempts = []journal.Attempt{a}
			} else if attempts, err = repo.Recent(ctx, instance, limit); err != nil {
				return err
			}

			rows := make([]historyRow, len(attempts))
			for i, a := range attempts {
				rows[i] = historyRow{
					Instance:  a.Instance,
					URL:       a.URL,
					Date:      a.Date,
					Phase:     a.Phase,
					NextPhase: a.NextPhase,
					Outcome:   a.Outcome,
					Detail:    a.Detail,
					At:        a.CreatedAt,
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "AT\tINSTANCE\tDATE\tPHASE\tNEXT\tOUTCOME\tDETAIL")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.At.Local().Format(time.DateTime), r.Instance, r.Date, r.Phase, r.NextPhase, r.Outcome, r.Detail)
			}
			return tw.Flush()
		},
	}

	c.Flags().StringVar(&instance, "instance", "", "only this instance id")
	c.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	c.Flags().BoolVar(&last, "last", false, "only the latest step of --instance")
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return c
}
