package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command group
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect tool configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the effective configuration",
	Long: `Print every configuration key with the value the tool would use,
after the config file, environment variables and flags have been
applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		values := cfg.GetAll()
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			fmt.Printf("%s = %s\n", key, values[key])
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
}

// fileConfig is the on-disk configuration shape. Values left empty in
// the file keep their defaults.
type fileConfig struct {
	Database databaseFileConfig `yaml:"database"`
}

type databaseFileConfig struct {
	Host    string `yaml:"host"`
	Port    string `yaml:"port"`
	User    string `yaml:"user"`
	DBName  string `yaml:"dbname"`
	SSLMode string `yaml:"sslmode"`
}

// initConfigFile overlays the config file onto the defaults, creating a
// default file on first run.
func initConfigFile(configFile string) error {
	configDir := filepath.Dir(configFile)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to read config file: %v", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("failed to parse config file: %v", err)
		}
		overlay := map[string]string{
			"database.host":    fc.Database.Host,
			"database.port":    fc.Database.Port,
			"database.user":    fc.Database.User,
			"database.dbname":  fc.Database.DBName,
			"database.sslmode": fc.Database.SSLMode,
		}
		for key, value := range overlay {
			if value == "" {
				delete(overlay, key)
			}
		}
		cfg.Update(overlay)
		return nil
	}

	// Create default config file
	defaults := fileConfig{
		Database: databaseFileConfig{
			Host:    cfg.Get("database.host"),
			Port:    cfg.Get("database.port"),
			User:    cfg.Get("database.user"),
			DBName:  cfg.Get("database.dbname"),
			SSLMode: cfg.Get("database.sslmode"),
		},
	}
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %v", err)
	}
	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write default config file: %v", err)
	}
	return nil
}
