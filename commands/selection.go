package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// The selected adventurer persists between runs so quest commands do not
// need --adventurer every time. It lives next to the token file.
func selectionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(dir, "sidequest", "adventurer"), nil
}

func saveSelection(id string) error {
	path, err := selectionPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		return fmt.Errorf("writing selection: %w", err)
	}
	return nil
}

func loadSelection() string {
	path, err := selectionPath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func clearSelection() {
	path, err := selectionPath()
	if err != nil {
		return
	}
	_ = os.Remove(path)
}

// resolveAdventurer prefers the explicit flag over the persisted selection.
func resolveAdventurer(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if id := loadSelection(); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no adventurer selected, pass --adventurer or run `%s adventurer select <id>`", appName)
}
