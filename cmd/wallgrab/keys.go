package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"wallgrab/pkg/auth"
	"wallgrab/pkg/ui"
)

var keyValue string

// keysCmd represents the keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys for Wallhaven, Unsplash, Pixabay and Pexels",
	Long: `Manage stored API keys.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables WALLGRAB_<SOURCE>_KEY (read only)

Pixabay and Pexels need a key; Wallhaven and Unsplash work without one.`,
}

var keysSetCmd = &cobra.Command{
	Use:   "set <source>",
	Short: "Store an API key",
	Long: `Store an API key for a source. Without --key you are prompted and the
input is hidden.`,
	Example: `  # Prompt for the key
  wallgrab keys set pexels

  # Pass it directly (ends up in shell history)
  wallgrab keys set pixabay --key 12345-abcdef`,
	Args: cobra.ExactArgs(1),
	RunE: runKeysSet,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys (masked)",
	Args:  cobra.NoArgs,
	RunE:  runKeysList,
}

var keysDeleteCmd = &cobra.Command{
	Use:     "delete <source>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored key",
	Args:    cobra.ExactArgs(1),
	RunE:    runKeysDelete,
}

var keysInfoCmd = &cobra.Command{
	Use:   "info <source>",
	Short: "Show where to get a key for a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auth.ShowKeyGuide(ui.Output(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysSetCmd)
	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysDeleteCmd)
	keysCmd.AddCommand(keysInfoCmd)

	keysSetCmd.Flags().StringVar(&keyValue, "key", "", "the API key (prompted for when omitted)")
}

func checkKeyedSource(source string) (string, error) {
	guide, ok := auth.GuideFor(source)
	if !ok {
		return "", fmt.Errorf("%s does not use an API key (keyed sources: %s)", source, strings.Join(auth.KeyedSources(), ", "))
	}
	return guide.Source, nil
}

func runKeysSet(cmd *cobra.Command, args []string) error {
	source, err := checkKeyedSource(args[0])
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize key store", err.Error())
		return err
	}

	key := keyValue
	if key == "" {
		_ = auth.ShowKeyGuide(ui.Output(), source)
		fmt.Fprintln(ui.Output())
		key, err = readSecret(fmt.Sprintf("%s API key: ", source))
		if err != nil {
			return err
		}
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("API key cannot be empty")
	}

	if err := manager.Store(source, key); err != nil {
		ui.PrintError("Failed to store key", err.Error())
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Stored %s key %s", source, auth.MaskKey(strings.TrimSpace(key))))
	return nil
}

func runKeysList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize key store", err.Error())
		return err
	}

	keys, err := manager.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		ui.PrintWarning("No API keys stored")
		fmt.Fprintln(ui.Output(), "Add one with 'wallgrab keys set <source>'")
		return nil
	}

	ui.PrintHighlight("Stored API keys")
	for _, k := range keys {
		fmt.Fprintf(ui.Output(), "  %-10s %s  (updated %s)\n", k.Source, auth.MaskKey(k.Key), k.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runKeysDelete(cmd *cobra.Command, args []string) error {
	source, err := checkKeyedSource(args[0])
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize key store", err.Error())
		return err
	}

	if err := manager.Delete(source); err != nil {
		ui.PrintError("Failed to delete key", err.Error())
		return err
	}
	ui.PrintSuccess("Deleted " + source + " key")
	if os.Getenv(auth.EnvVar(source)) != "" {
		ui.PrintWarning(fmt.Sprintf("%s is still set in the environment", auth.EnvVar(source)))
	}
	return nil
}

// readSecret prompts for a value without echo on a terminal, or reads a
// line from stdin otherwise
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}
