package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func OptionalStringFlag(cmd *cobra.Command, name string) (string, error) {
	if cmd == nil || cmd.Flags().Lookup(name) == nil {
		return "", nil
	}
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return strings.TrimSpace(value), nil
}

// OptionalIntFlag returns nil when the flag was not set on the command line,
// leaving the default to the tool.
func OptionalIntFlag(cmd *cobra.Command, name string) (*int, error) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return nil, nil
	}
	value, err := cmd.Flags().GetInt(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return &value, nil
}

func JSONFlag(cmd *cobra.Command) (bool, error) {
	if cmd.Flags().Lookup("json") == nil {
		return false, nil
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return false, fmt.Errorf("failed to read --json flag: %w", err)
	}
	return asJSON, nil
}
