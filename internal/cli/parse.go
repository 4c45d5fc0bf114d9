package cli

import (
	"alertbot/internal/alert"
	"strings"

	"github.com/spf13/cobra"
)

func newParseCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   `parse "<алерт>"`,
		Short: "Разобрать строку алерта и показать её поля",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput(cmd, opts)
			sig, err := alert.Parse(strings.Join(args, " "))
			if err != nil {
				if opts.jsonOut {
					return out.JSON(map[string]string{"status": "error", "message": err.Error()})
				}
				out.Fail("%v", err)
				return err
			}
			if opts.jsonOut {
				return out.JSON(sig)
			}
			out.OK("Алерт разобран")
			out.Field("Тикер", "%s", sig.Ticker)
			out.Field("Направление", "%s", sig.Direction)
			out.Field("Цена", "%g", sig.ReferencePrice)
			out.Field("ATR", "%v", sig.ATR)
			return nil
		},
	}
}
