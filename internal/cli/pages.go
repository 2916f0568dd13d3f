package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewHealthCmd создаёт команду проверки /health.
func NewHealthCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := clientFn().Health(cmd.Context())
			if err != nil {
				return err
			}

			outputFn().KeyValue([][2]string{
				{"STATUS", health.Status},
				{"UPTIME", fmt.Sprintf("%.1fs", health.Uptime)},
				{"HEAP", formatBytes(health.Memory["heapAlloc"])},
				{"VERSION", health.Version},
				{"TIMESTAMP", health.Timestamp},
			}, health)
			return nil
		},
	}
}

// NewHomeCmd создаёт команду загрузки главной страницы.
func NewHomeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Load the homepage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := clientFn().Home(cmd.Context())
			if err != nil {
				return err
			}

			outputFn().KeyValue([][2]string{
				{"MESSAGE", home.Message},
				{"LOAD_TIME", home.LoadTime},
				{"TIMESTAMP", home.Timestamp},
			}, home)
			return nil
		},
	}
}

// NewProductsCmd создаёт команду загрузки страницы товаров.
func NewProductsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "Load the products page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := clientFn().Products(cmd.Context())
			if err != nil {
				return err
			}

			out := outputFn()
			headers := []string{"ID", "NAME", "PRICE", "CATEGORY", "IN_STOCK"}
			rows := make([][]string, len(page.Products))
			for i, p := range page.Products {
				rows[i] = []string{p.ID, p.Name, formatMoney(p.Price), p.Category, strconv.FormatBool(p.InStock)}
			}

			out.Print(headers, rows, page)
			if !out.JSONMode() {
				out.Success(fmt.Sprintf("%d products loaded in %s", len(page.Products), page.LoadTime))
			}
			return nil
		},
	}
}

// NewMetricsCmd создаёт команду чтения /metrics.
func NewMetricsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show exposed metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := clientFn().Metrics(cmd.Context())
			if err != nil {
				return err
			}

			samples := FilterSamples(text, prefix)

			out := outputFn()
			if out.JSONMode() {
				out.JSON(samples)
				return nil
			}
			for _, s := range samples {
				out.Line(s)
			}
			out.Success(fmt.Sprintf("%d samples (%d bytes total)", len(samples), len(text)))
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "ecommerce_", "Show only samples with this name prefix (empty for all)")

	return cmd
}

// FilterSamples возвращает строки-сэмплы (без # HELP и # TYPE) с именем на prefix.
func FilterSamples(text, prefix string) []string {
	var samples []string

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, prefix) {
			samples = append(samples, line)
		}
	}
	return samples
}

// CountSamples считает сэмплы метрики name (включая _bucket, _sum, _count).
func CountSamples(text, name string) int {
	return len(FilterSamples(text, name))
}

func formatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// formatBytes форматирует значение из JSON (float64) в мегабайты.
func formatBytes(v any) string {
	f, ok := v.(float64)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.1fMB", f/1024/1024)
}
