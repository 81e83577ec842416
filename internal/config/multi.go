package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultLabel = "Default"

var (
	ErrNoConfig     = errors.New("no config selected")
	ErrInvalidLabel = errors.New("invalid config label")
)

func ConfigRoot() string {
	// Windows
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "mangapdf")
	}

	// Linux/macOS XDG
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mangapdf")
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mangapdf")
}

func ConfigsDir() string {
	return filepath.Join(ConfigRoot(), "configs")
}

func CurrentLabelFile() string {
	return filepath.Join(ConfigRoot(), "current_config")
}

// profilePath maps a label to its YAML file and creates the config dirs.
// Labels are plain names; anything that could leave ConfigsDir is refused.
func profilePath(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" || label == "." || label == ".." || strings.ContainsAny(label, `/\:`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}

	if err := os.MkdirAll(ConfigsDir(), 0755); err != nil {
		return "", err
	}

	return filepath.Join(ConfigsDir(), label+".yaml"), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeCurrentLabel(label string) error {
	return os.WriteFile(CurrentLabelFile(), []byte(strings.TrimSpace(label)), 0644)
}

func CurrentLabel() (string, error) {
	b, err := os.ReadFile(CurrentLabelFile())
	if os.IsNotExist(err) {
		return "", ErrNoConfig
	}
	if err != nil {
		return "", err
	}

	label := strings.TrimSpace(string(b))
	if label == "" {
		return "", ErrNoConfig
	}

	return label, nil
}

func ActiveConfigPath() (string, error) {
	label, err := CurrentLabel()
	if err != nil {
		return "", err
	}

	return profilePath(label)
}

// ConfigPathByLabel returns the file of an existing profile.
func ConfigPathByLabel(label string) (string, error) {
	path, err := profilePath(label)
	if err != nil {
		return "", err
	}
	if !exists(path) {
		return "", fmt.Errorf("config %q does not exist", label)
	}

	return path, nil
}

type ConfigInfo struct {
	Label  string
	Path   string
	Active bool
}

func ListConfigs() ([]ConfigInfo, error) {
	if err := os.MkdirAll(ConfigsDir(), 0755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(ConfigsDir())
	if err != nil {
		return nil, err
	}

	active, _ := CurrentLabel()
	var out []ConfigInfo

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}

		label := strings.TrimSuffix(name, ".yaml")
		out = append(out, ConfigInfo{
			Label:  label,
			Path:   filepath.Join(ConfigsDir(), name),
			Active: label == active,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// SwitchConfig activates label after checking the profile loads and holds
// a usable format, strategy and store driver.
func SwitchConfig(label string) error {
	path, err := ConfigPathByLabel(label)
	if err != nil {
		return err
	}

	cfg, err := loadYAML(path)
	if err != nil {
		return fmt.Errorf("config %q: %w", label, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %q: %w", label, err)
	}

	return writeCurrentLabel(label)
}

// AddConfig imports the YAML at srcPath as a new profile. The file must
// parse and validate; it is stored re-encoded so unknown keys are dropped.
func AddConfig(label, srcPath string) (string, error) {
	dst, err := profilePath(label)
	if err != nil {
		return "", err
	}
	if exists(dst) {
		return "", fmt.Errorf("config %q already exists", label)
	}

	cfg, err := loadYAML(srcPath)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", srcPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("%s: %w", srcPath, err)
	}

	return dst, SaveYAML(cfg, dst)
}

func CreateEmptyConfig(label string) (string, error) {
	path, err := profilePath(label)
	if err != nil {
		return "", err
	}
	if exists(path) {
		return "", fmt.Errorf("config %q already exists", label)
	}

	return path, SaveYAML(DefaultConfig(), path)
}

func RenameConfig(oldLabel, newLabel string) error {
	oldPath, err := ConfigPathByLabel(oldLabel)
	if err != nil {
		return err
	}
	newPath, err := profilePath(newLabel)
	if err != nil {
		return err
	}
	if exists(newPath) {
		return fmt.Errorf("config %q already exists", newLabel)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}

	if active, _ := CurrentLabel(); active == strings.TrimSpace(oldLabel) {
		return writeCurrentLabel(newLabel)
	}

	return nil
}

// RemoveConfig deletes a profile. Removing the active one falls back to
// Default, which itself can never be removed.
func RemoveConfig(label string) error {
	label = strings.TrimSpace(label)
	if label == DefaultLabel {
		return fmt.Errorf("cannot remove the %s config", DefaultLabel)
	}

	path, err := ConfigPathByLabel(label)
	if err != nil {
		return err
	}

	if active, _ := CurrentLabel(); active == label {
		if err := SwitchConfig(DefaultLabel); err != nil {
			return fmt.Errorf("failed switching to %s: %w", DefaultLabel, err)
		}
	}

	return os.Remove(path)
}

// InitDefaultConfig writes the Default profile and activates it. An existing
// Default is activated as is and reported with os.ErrExist.
func InitDefaultConfig() (string, error) {
	path, err := profilePath(DefaultLabel)
	if err != nil {
		return "", err
	}

	if exists(path) {
		if err := writeCurrentLabel(DefaultLabel); err != nil {
			return "", err
		}
		return path, os.ErrExist
	}

	if err := SaveYAML(DefaultConfig(), path); err != nil {
		return "", err
	}

	return path, writeCurrentLabel(DefaultLabel)
}
