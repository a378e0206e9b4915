package logger

import (
	"os"
	"runtime"
)

const (
	OutputStdout  = "stdout"
	OutputStderr  = "stderr"
	OutputFile    = "file"
	OutputDiscard = "discard"
)

type Config struct {
	Level      Level             `json:"level"       yaml:"level"`
	Format     string            `json:"format"      yaml:"format"` // json, text, console
	Output     string            `json:"output"      yaml:"output"` // stdout, stderr, file, discard
	FilePath   string            `json:"file_path"   yaml:"file_path"`
	MaxSize    int               `json:"max_size"    yaml:"max_size"` // MB
	MaxBackups int               `json:"max_backups" yaml:"max_backups"`
	MaxAge     int               `json:"max_age"     yaml:"max_age"` // days
	Compress   bool              `json:"compress"    yaml:"compress"`
	Fields     map[string]string `json:"fields"      yaml:"fields"`
}

// GetDefaultFields collects process and container metadata attached to every entry.
func GetDefaultFields() Fields {
	hostname, _ := os.Hostname()

	fields := Fields{
		"hostname":   hostname,
		"pid":        os.Getpid(),
		"go_version": runtime.Version(),
	}

	envFields := map[string]string{
		"KUBERNETES_NAMESPACE": "k8s_namespace",
		"KUBERNETES_POD_NAME":  "k8s_pod",
		"KUBERNETES_NODE_NAME": "k8s_node",
		"APP_VERSION":          "app_version",
		"APP_ENV":              "environment",
	}
	for env, field := range envFields {
		if v := os.Getenv(env); v != "" {
			fields[field] = v
		}
	}

	return fields
}

func NewDefaultConfig() *Config {
	config := &Config{
		Level:      LevelInfo,
		Format:     "console",
		Output:     OutputStdout,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Fields:     make(map[string]string),
	}

	for k, v := range GetDefaultFields() {
		if str, ok := v.(string); ok {
			config.Fields[k] = str
		}
	}

	return config
}

// NewDiscardConfig returns a config whose logger drops every entry.
func NewDiscardConfig() *Config {
	return &Config{
		Level:  LevelDebug,
		Format: "text",
		Output: OutputDiscard,
		Fields: make(map[string]string),
	}
}
