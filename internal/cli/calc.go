package cli

import (
	"alertbot/internal/alert"
	"alertbot/internal/engine"
	"alertbot/internal/tickers"

	"github.com/spf13/cobra"
)

func newCalcCmd(opts *options) *cobra.Command {
	var (
		quote       float64
		tickersFile string
		minSize     float64
	)

	cmd := &cobra.Command{
		Use:   `calc "<алерт>"`,
		Short: "Рассчитать параметры сделки без обращения к брокеру",
		Example: `  bot calc "LSE_DLY:SRP UP 189.8 0.6 1.819 2.378 2.839 3.204 3.478 3.68 3.83 3.94 4.023"
  bot calc --quote 19170 "LSE_DLY:SRP UP 189.8 ..."`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(cmd, opts)
			log := opts.offlineLogger()

			if tickersFile == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				tickersFile = cfg.Trading.TickersFile
			}
			store := tickers.NewStore(tickersFile, log)
			if err := store.Load(); err != nil {
				return err
			}

			sig, err := alert.Parse(args[0])
			if err != nil {
				return err
			}

			var q *float64
			if quote > 0 {
				q = &quote
			}
			params, err := engine.NewCalculator(store, nil, minSize, log).
				Calculate(sig.Ticker, sig.Direction, sig.ReferencePrice, sig.ATR, q)
			if err != nil {
				return err
			}

			if opts.jsonOut {
				return out.JSON(params)
			}
			printParams(out, params)
			return nil
		},
	}

	cmd.Flags().Float64Var(&quote, "quote", 0, "текущая котировка брокера для нормализации цены")
	cmd.Flags().StringVar(&tickersFile, "tickers", "", "CSV таблица тикеров (по умолчанию из конфигурации)")
	cmd.Flags().Float64Var(&minSize, "min-size", engine.OfflineMinPositionSize, "минимальный размер позиции")
	return cmd
}

func printParams(out *output, p engine.TradeParameters) {
	out.Field("Тикер", "%s", p.Ticker)
	out.Field("Направление", "%s", p.Direction)
	out.Field("Цена алерта", "%.4f", p.OriginalPrice)
	out.Field("Уровень", "%.4f", p.PriceLevel)
	out.Field("Цена входа", "%.4f", p.EntryPrice)
	out.Field("Стоп", "%.4f (ATR %.4f)", p.StopDistance, p.ATRStop)
	out.Field("Тейк", "%.4f (ATR %.4f)", p.LimitDistance, p.ATRProfit)
	out.Field("Размер", "%.2f (макс. %.0f GBP)", p.PositionSize, p.MaxPositionValue)
	if p.ScaleFactor != 1 {
		out.Warn("Цена нормализована к котировке, множитель %g", p.ScaleFactor)
	}
	if p.UsedFallbackATR {
		out.Warn("Недостаточно ATR, использованы 1%% / 2%% от цены")
	}
}
