package config

import (
	"github.com/spf13/viper"
)

// Config configuration struct
type Config struct {
	Level           int              `json:"level" yaml:"level"`
	Format          string           `json:"format" yaml:"format"`
	Output          string           `json:"output" yaml:"output"`
	OutputFile      string           `json:"output_file" yaml:"output_file"`
	Desensitization *Desensitization `json:"desensitization" yaml:"desensitization"`
}

// GetConfig returns the logger configuration, defaulting to info level JSON
// on stdout when the section is absent.
func GetConfig(v *viper.Viper) *Config {
	if !v.IsSet("logger") {
		return &Config{
			Level:           4,
			Format:          "json",
			Output:          "stdout",
			Desensitization: getDesensitizationConfigs(v),
		}
	}

	level := 4
	if v.IsSet("logger.level") {
		level = v.GetInt("logger.level")
	}

	return &Config{
		Level:           level,
		Format:          v.GetString("logger.format"),
		Output:          v.GetString("logger.output"),
		OutputFile:      v.GetString("logger.output_file"),
		Desensitization: getDesensitizationConfigs(v),
	}
}
