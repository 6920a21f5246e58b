package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/eatonphil/resultset"
)

type LoggerConfigs struct {
	ConsoleLevel  string `toml:"console_level"`
	ConsoleOutput string `toml:"console_output"`
	FileLevel     string `toml:"file_level"`
	FileOutput    string `toml:"file_output"`
}

type ReplConfig struct {
	Prompt      string `toml:"prompt"`
	HistoryFile string `toml:"history_file"`
	ShowSchema  bool   `toml:"show_schema"`
}

type ServerConfig struct {
	// Collation is a collation name such as Latin1_General_CI_AS.
	Collation string `toml:"collation"`
	// Seed is a SQL script run before the first command.
	Seed string `toml:"seed"`
}

type ExportConfig struct {
	Format    string `toml:"format"`
	Delimiter string `toml:"delimiter"`
	NullValue string `toml:"null_value"`
}

type Config struct {
	Reader  resultset.Options `toml:"reader"`
	Repl    ReplConfig        `toml:"repl"`
	Server  ServerConfig      `toml:"server"`
	Export  ExportConfig      `toml:"export"`
	Logging LoggerConfigs     `toml:"logger"`
}

func NewConfig() *Config {
	return &Config{
		Reader: resultset.DefaultOptions(),
		Repl: ReplConfig{
			Prompt: "# ",
		},
		Server: ServerConfig{
			Collation: resultset.DefaultCollation.String(),
		},
		Export: ExportConfig{
			Format:    "csv",
			Delimiter: ",",
		},
		Logging: LoggerConfigs{
			ConsoleLevel:  "warn",
			ConsoleOutput: "stderr",
			FileLevel:     "info",
		},
	}
}

// FromFile loads path over the defaults. Variables from a .env file in the
// working directory, when there is one, are visible to ${VAR} references in
// string settings.
func FromFile(path string) (*Config, error) {
	conf := NewConfig()

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Error loading .env file: %w", err)
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, conf); err != nil {
			return nil, fmt.Errorf("Error loading config TOML: %w", err)
		}
	}

	conf.expandEnv()
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) expandEnv() {
	for _, s := range []*string{
		&c.Repl.HistoryFile,
		&c.Server.Seed,
		&c.Logging.FileOutput,
	} {
		*s = os.ExpandEnv(*s)
	}
}

func (c *Config) validate() error {
	consoleOutputs := []string{"stderr", "stdout"}
	if !slices.Contains(consoleOutputs, c.Logging.ConsoleOutput) {
		return fmt.Errorf("%s is not in valid console outputs %v", c.Logging.ConsoleOutput, consoleOutputs)
	}

	if _, ok := resultset.LookupCollation(c.Server.Collation); !ok {
		return fmt.Errorf("unknown collation %q", c.Server.Collation)
	}

	if len([]rune(c.Export.Delimiter)) != 1 {
		return fmt.Errorf("export delimiter must be a single character, got %q", c.Export.Delimiter)
	}
	return nil
}

// Collation resolves the server collation name.
func (c *Config) Collation() resultset.Collation {
	coll, _ := resultset.LookupCollation(c.Server.Collation)
	return coll
}
