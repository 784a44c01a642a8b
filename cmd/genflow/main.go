// GenFlow CLI — локальный запуск декларативных flow.
//
// Использование:
//
//	genflow [--json] [--log-level LEVEL] <command> [flags]
//
// Команды:
//
//	compose   Раскрыть вложенные flow в один YAML
//	graph     Показать порядок выполнения шагов
//	run       Выполнить flow
//	report    Сохранённые отчёты run
//	executor  Реестр внешних исполнителей
//	events    События run из RabbitMQ
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Genflow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd(version, os.Stdout, os.Stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
