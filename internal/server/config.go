package server

import (
	"cmp"
	"fmt"
	"os"
	"path"
	"syscall"

	"gopkg.in/yaml.v3"
)

const (
	B  int64 = 1
	KB       = B << 10
	MB       = KB << 10
	GB       = MB << 10
)

const (
	DefaultHttpPort = 80

	DefaultMaxMemoryBufferSize = 1 * MB
	DefaultMaxRequestBodySize  = 0
)

type Config struct {
	Bind        string
	HttpPort    int
	MetricsPort int

	MaxRequestBodySize  int64
	MaxMemoryBufferSize int64
	InspectForms        bool

	AlternateConfigDir string
}

func (c Config) SocketPath() string {
	return path.Join(c.runtimeDirectory(), "formgate.sock")
}

func (c Config) StatePath() string {
	return path.Join(c.dataDirectory(), "formgate.state")
}

// FileConfig is the optional YAML configuration accepted by `run`. Flags win
// over file values.
type FileConfig struct {
	Routes       []RouteConfig   `yaml:"routes"`
	Buffering    BufferingConfig `yaml:"buffering"`
	InspectForms bool            `yaml:"inspect_forms"`
}

type RouteConfig struct {
	Host   string `yaml:"host"`
	Target string `yaml:"target"`
}

type BufferingConfig struct {
	MaxRequestBodySize  int64 `yaml:"max_request_body_size"`
	MaxMemoryBufferSize int64 `yaml:"max_memory_buffer_size"`
}

func LoadFileConfig(configPath string) (*FileConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config FileConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &config, nil
}

// Private

func (c Config) runtimeDirectory() string {
	return cmp.Or(os.Getenv("XDG_RUNTIME_DIR"), os.TempDir())
}

func (c Config) dataDirectory() string {
	return cmp.Or(c.AlternateConfigDir, c.defaultDataDirectory())
}

func (c Config) defaultDataDirectory() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	dir := path.Join(home, ".config", "formgate")

	err = os.MkdirAll(dir, syscall.S_IRUSR|syscall.S_IWUSR|syscall.S_IXUSR)
	if err != nil {
		dir = os.TempDir()
	}

	return dir
}
