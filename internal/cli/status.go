package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/salexandr0s/scry/internal/mirror"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the mirror's connection state and counters",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().String("relay", "http://127.0.0.1:7717", "Relay base URL")
	statusCmd.Flags().String("token", "", "Relay auth token")
	statusCmd.Flags().Bool("json", false, "Print raw JSON")
	rootCmd.AddCommand(statusCmd)
}

var (
	modeStyles = map[mirror.Mode]lipgloss.Style{
		mirror.ModeConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		mirror.ModePolling:      lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		mirror.ModeConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		mirror.ModeDisconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	var status mirror.Status
	if err := relayGet(cmd, "/api/status", &status); err != nil {
		return err
	}

	if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
		return json.NewEncoder(os.Stdout).Encode(status)
	}

	mode := string(status.Mode)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		if style, ok := modeStyles[status.Mode]; ok {
			mode = style.Render(mode)
		}
	}

	fmt.Printf("%s %s\n", label("mode:"), mode)
	fmt.Printf("%s %d\n", label("reconnect attempts:"), status.Attempts)
	fmt.Printf("%s %d seen, %d ignored\n", label("frames:"), status.FramesSeen, status.FramesIgnored)
	fmt.Printf("%s %d connected, %d deltas dropped\n", label("subscribers:"), status.Subscribers, status.SubscriberDrops)
	if status.LastEventID != "" {
		fmt.Printf("%s %s\n", label("last event:"), status.LastEventID)
	}
	return nil
}

func label(s string) string {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return labelStyle.Render(s)
	}
	return s
}

// relayGet fetches a relay endpoint into out, honoring the --relay and
// --token flags.
func relayGet(cmd *cobra.Command, path string, out any) error {
	base, _ := cmd.Flags().GetString("relay")
	token, _ := cmd.Flags().GetString("token")

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("reaching relay at %s (is 'scry run' active?): %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding relay response: %w", err)
	}
	return nil
}
