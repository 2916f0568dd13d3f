// Storefront CLI — инструмент командной строки для проверки демо-магазина
// через HTTP API и чтения событий заказов из RabbitMQ.
//
// Использование:
//
//	storefront [--api-url URL] [--json] <command> [flags]
//
// Команды:
//
//	health    Состояние сервиса
//	home      Главная страница
//	products  Страница товаров
//	order     Оформить заказ
//	metrics   Метрики Prometheus
//	smoke     Проверить все эндпоинты
//	load      Сгенерировать нагрузку
//	events    Читать события заказов
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/Storefront/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront CLI: exercise the demo ecommerce service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:3000"
	if v := os.Getenv("STOREFRONT_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client {
		return cli.NewClient(apiURL).WithUserAgent("storefront-cli/" + version)
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewHealthCmd(clientFn, outputFn),
		cli.NewHomeCmd(clientFn, outputFn),
		cli.NewProductsCmd(clientFn, outputFn),
		cli.NewOrderCmd(clientFn, outputFn),
		cli.NewMetricsCmd(clientFn, outputFn),
		cli.NewSmokeCmd(clientFn, outputFn),
		cli.NewLoadCmd(clientFn, outputFn),
		cli.NewEventsCmd(outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
