package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	httphandler "SimpleTodoAPI/services/todo-api/internal/handler/http"
)

// newRootCmd создает корневую команду; без подкоманды запускается сервер
func newRootCmd() *cobra.Command {
	opts := &serveOptions{}

	rootCmd := &cobra.Command{
		Use:           "todo-api",
		Short:         "Simple Todo API server",
		Long:          `todo-api - минимальный HTTP сервер Simple Todo API с эндпоинтами / и /health.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	opts.bindFlags(rootCmd)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", httphandler.APIName, httphandler.APIVersion)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}
