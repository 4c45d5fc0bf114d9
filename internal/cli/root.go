package cli

import (
	"alertbot/internal/config"
	"alertbot/internal/logger"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	jsonOut    bool
	debug      bool
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "bot",
		Short: "Вебхук-сервер алертов TradingView для IG",
		Long: `bot принимает алерты TradingView, рассчитывает параметры сделки
по таблице тикеров и выставляет лимитные заявки у IG.

Без подкоманды запускается сервер (bot serve).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "путь к config.yaml")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "вывод в JSON")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "подробный лог")

	root.AddCommand(
		newServeCmd(opts),
		newCalcCmd(opts),
		newParseCmd(opts),
		newDividendsCmd(opts),
	)
	return root
}

func (o *options) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

// offlineLogger: без --debug разовые команды ничего не логируют.
func (o *options) offlineLogger() *logger.Logger {
	if !o.debug {
		return logger.Discard()
	}
	return logger.New(logger.Config{Level: "debug", Format: "text"})
}
