package cli

import (
	"alertbot/internal/dividend"
	"alertbot/internal/tickers"
	"context"

	"github.com/spf13/cobra"
)

func newDividendsCmd(opts *options) *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "dividends",
		Short: "Проверить ближайшие ex-dividend даты по таблице тикеров",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(cmd, opts)
			log := opts.offlineLogger()

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			store := tickers.NewStore(cfg.Trading.TickersFile, log)
			if err := store.Load(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			r := dividend.NewRefresher(store, dividend.NewYahooFetcher(cfg.Dividend.BaseUrl, log), log)

			var entries []dividend.Entry
			if save {
				entries, err = r.Run(ctx)
				if err != nil {
					return err
				}
			} else {
				entries = r.Check(ctx)
			}

			if opts.jsonOut {
				return out.JSON(entries)
			}
			for _, e := range entries {
				switch {
				case e.Error != "":
					out.Fail("%s: %s", e.Symbol, e.Error)
				case e.Upcoming:
					out.OK("%s (%s): %s", e.Symbol, e.YahooSymbol, e.ExDividend.Format("2006-01-02"))
				default:
					out.Field(e.Symbol, "нет будущей даты")
				}
			}
			if save {
				out.OK("Таблица %s сохранена", store.Path())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "записать будущие даты в таблицу тикеров")
	return cmd
}
