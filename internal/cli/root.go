// Package cli implements the boomtrade command line interface.
// The serve command runs the node; every other command talks to a running
// node over its local HTTP API.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/boomtrade/boomtrade/internal/api"
	"github.com/boomtrade/boomtrade/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "boomtrade",
	Short: "Local-mesh barter trading node",
	Long: `boomtrade discovers nearby traders over the local network, advertises
your have/need offer, and negotiates one-to-one trades through a timed
handshake. Settled trades land in a persistent history with per-peer
trust scores.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.boomtrade/config.toml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the node version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(api.Version)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ─── API Client Helpers ─────────────────────────────────────────────────────

// apiBase resolves the running node's API address from config.
func apiBase() (string, error) {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", cfg.API.Host, cfg.API.Port), nil
}

// call performs an API request and decodes the JSON response into out
// (out may be nil for status-only calls).
func call(method, path string, body interface{}, out interface{}) error {
	base, err := apiBase()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(method, base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("is the node running? (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%s", apiErr.Error.Message)
		}
		return fmt.Errorf("api returned %s", resp.Status)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
