package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"ollamadash/internal/app"
	"ollamadash/internal/tui"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configPath string
	hostFlag   string
)

func loadConfig() (app.Config, error) {
	path := configPath
	if path == "" {
		path = app.DefaultConfigPath()
	}
	cfg, err := app.LoadConfig(path)
	if err != nil {
		return cfg, err
	}
	if hostFlag != "" {
		cfg.BaseURL = hostFlag
	}
	return cfg, nil
}

func newClient() (*app.OllamaClient, app.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	return app.NewOllamaClient(cfg.BaseURL), cfg, nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	client, cfg, err := newClient()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg)

	store, err := app.NewSQLiteMessageStore(cfg.StateDir)
	if err != nil {
		return fmt.Errorf("open message store: %w", err)
	}
	defer store.Close()

	inv := app.NewInventory(client, logger, app.InventoryOptions{})
	defer inv.Close()
	session := app.NewChatSession(client, store, logger)

	return tui.Run(inv, session)
}

func runModels(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	models, err := client.ListModels(context.Background())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tFAMILY\tPARAMS\tQUANT\tMODIFIED")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			m.Name, app.FormatBytes(m.Size), m.Details.Family,
			m.Details.ParameterSize, m.Details.QuantizationLevel,
			m.ModifiedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runPS(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	running, err := client.ListRunningModels(context.Background())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVRAM\tEXPIRES")
	for _, m := range running {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, app.FormatBytes(m.SizeVRAM), m.ExpiresAt.Format("15:04:05"))
	}
	return w.Flush()
}

func runPull(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	name := args[0]
	updates, err := client.PullModel(cmd.Context(), name)
	if err != nil {
		return err
	}
	for u := range updates {
		if u.Err != nil {
			fmt.Println()
			return u.Err
		}
		fmt.Printf("\r\033[K%s", u.Status)
	}
	fmt.Printf("\r\033[K%s: completed\n", name)
	return nil
}

func runRM(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	if err := client.DeleteModel(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

func runOneShot(cmd *cobra.Command, args []string) error {
	client, _, err := newClient()
	if err != nil {
		return err
	}
	prompt := strings.Join(args[1:], " ")
	resp, err := client.Generate(cmd.Context(), args[0], prompt)
	if err != nil {
		return err
	}
	fmt.Println(resp.Response)
	return nil
}

func main() {
	root := &cobra.Command{
		Use:           "ollamadash",
		Short:         "Terminal dashboard and chat client for a local Ollama daemon",
		RunE:          runDashboard,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&hostFlag, "host", "", "daemon API base URL (overrides config)")

	root.AddCommand(
		&cobra.Command{Use: "models", Short: "List installed models", RunE: runModels},
		&cobra.Command{Use: "ps", Short: "List running models", RunE: runPS},
		&cobra.Command{Use: "pull <model>", Short: "Download a model", Args: cobra.ExactArgs(1), RunE: runPull},
		&cobra.Command{Use: "rm <model>", Short: "Delete a model", Args: cobra.ExactArgs(1), RunE: runRM},
		&cobra.Command{Use: "run <model> <prompt>...", Short: "One-shot prompt against a model", Args: cobra.MinimumNArgs(2), RunE: runOneShot},
		&cobra.Command{
			Use:   "version",
			Short: "Print version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println("ollamadash " + version)
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
