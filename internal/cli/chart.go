package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sandy01030103/gold-price-etl/internal/app"
)

var (
	chartLimit  int
	chartOutput string
)

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Render a trend chart of the latest stored prices",
	RunE: func(cmd *cobra.Command, args []string) error {
		if chartLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}

		_, err := getApp().Chart(cmd.Context(), app.ChartOptions{
			Limit:  chartLimit,
			Output: chartOutput,
		})
		return err
	},
}

func init() {
	chartCmd.Flags().IntVar(&chartLimit, "limit", 0, "Number of readings to plot (defaults to config)")
	chartCmd.Flags().StringVar(&chartOutput, "out", "", "PNG path (defaults to chart.output_dir/trend_chart_<timestamp>.png)")
}
