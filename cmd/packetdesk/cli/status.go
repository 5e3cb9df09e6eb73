package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check if the packetdesk server is running",
		Long:  "Check the liveness and readiness of a running packetdesk server over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = defaultServerURL()
			}
			return runStatus(cmd, url)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Server base URL (default: from server.host and server.port)")

	return cmd
}

func defaultServerURL() string {
	port := viper.GetInt("server.port")
	if port == 0 {
		port = 8080
	}
	host := viper.GetString("server.host")
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

func runStatus(cmd *cobra.Command, base string) error {
	out := cmd.OutOrStdout()
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(base + "/healthz")
	if err != nil {
		fmt.Fprintf(out, "Server is not responding at %s.\n", base)
		return nil
	}
	resp.Body.Close()
	fmt.Fprintf(out, "Server is running at %s\n", base)
	fmt.Fprintf(out, "  Health:  %d\n", resp.StatusCode)

	resp, err = client.Get(base + "/readyz")
	if err != nil {
		fmt.Fprintf(out, "  Ready:   error: %v\n", err)
		return nil
	}
	defer resp.Body.Close()

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ready); err != nil {
		fmt.Fprintf(out, "  Ready:   %d (unreadable body)\n", resp.StatusCode)
		return nil
	}
	fmt.Fprintf(out, "  Ready:   %s (%d)\n", ready.Status, resp.StatusCode)
	for name, result := range ready.Checks {
		fmt.Fprintf(out, "    %s: %s\n", name, result)
	}
	return nil
}
