package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newConfigCmd выводит итоговую конфигурацию (defaults -> файл -> окружение -> флаги)
func newConfigCmd() *cobra.Command {
	opts := &serveOptions{}
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Показать итоговую конфигурацию",
		Long:  "Показать конфигурацию с учетом файла, переменных окружения и флагов или сохранить ее в файл",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if output != "" {
				if err := cfg.Save(output); err != nil {
					return fmt.Errorf("failed to save config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to %s\n", output)
				return nil
			}

			content, err := cfg.YAML()
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
	opts.bindFlags(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "сохранить конфигурацию в файл")

	return cmd
}
