// Command livenessctl is an operator CLI for exercising the liveness
// verification service from the command line: requesting a challenge and
// running the attack-simulation endpoint against a directory of captured
// frames.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
)

var baseURL string

func main() {
	root := &cobra.Command{
		Use:   "livenessctl",
		Short: "Operate the liveness verification service from the command line",
	}
	root.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the liveness service")

	root.AddCommand(newChallengeCmd())
	root.AddCommand(newAttackSimCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newChallengeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "challenge",
		Short: "Request a new liveness challenge and print its steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Post(baseURL+"/api/v1/challenge", "application/json", nil)
			if err != nil {
				return fmt.Errorf("livenessctl: request failed: %w", err)
			}
			defer resp.Body.Close()
			return printJSON(resp)
		},
	}
}

func newAttackSimCmd() *cobra.Command {
	var framesDir string

	cmd := &cobra.Command{
		Use:   "attack-sim",
		Short: "Run the attack-simulation endpoint against a directory of image frames",
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, err := loadFramesAsBase64(framesDir)
			if err != nil {
				return err
			}

			payload, err := json.Marshal(map[string]any{"frames": frames})
			if err != nil {
				return err
			}

			resp, err := http.Post(baseURL+"/api/v1/attack-sim", "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("livenessctl: request failed: %w", err)
			}
			defer resp.Body.Close()
			return printJSON(resp)
		},
	}
	cmd.Flags().StringVar(&framesDir, "frames", "", "directory of image frames, read in lexical filename order")
	cmd.MarkFlagRequired("frames")
	return cmd
}

func loadFramesAsBase64(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("livenessctl: failed to read frames directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	frames := make([]string, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("livenessctl: failed to read frame %s: %w", name, err)
		}
		frames = append(frames, base64.StdEncoding.EncodeToString(data))
	}
	return frames, nil
}

func printJSON(resp *http.Response) error {
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("livenessctl: failed to decode response: %w", err)
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(body)
}
