package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultChangelogPath = "bamsync.db"
	defaultTimeout       = 30 * time.Second
	defaultLogLevel      = "info"
	defaultLogEnv        = "prod"
)

type Config struct {
	ChangelogPath string `yaml:"changelogPath"`
	Log           Log    `yaml:"log"`
	BAM           BAM    `yaml:"bam"`
	Import        Import `yaml:"import"`
}

// BAM is the remote address manager connection. The password is usually
// supplied through BAMSYNC_BAM_PASSWORD rather than the file.
type BAM struct {
	URL       string        `yaml:"url"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	VerifySSL bool          `yaml:"verifySsl"`
	Timeout   time.Duration `yaml:"timeout"`
}

type Import struct {
	NetworkCIDR    string   `yaml:"networkCidr"`
	ViewName       string   `yaml:"viewName"`
	ProtectedNames []string `yaml:"protectedNames"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, err
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	if cfg.ChangelogPath == "" {
		cfg.ChangelogPath = defaultChangelogPath
	}
	if cfg.BAM.Timeout == 0 {
		cfg.BAM.Timeout = defaultTimeout
	}

	// Set log defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}

	// Override from environment if set
	if url := os.Getenv("BAMSYNC_BAM_URL"); url != "" {
		cfg.BAM.URL = url
	}
	if username := os.Getenv("BAMSYNC_BAM_USERNAME"); username != "" {
		cfg.BAM.Username = username
	}
	if password := os.Getenv("BAMSYNC_BAM_PASSWORD"); password != "" {
		cfg.BAM.Password = password
	}
	if verify := os.Getenv("BAMSYNC_BAM_VERIFY_SSL"); verify != "" {
		switch strings.ToLower(verify) {
		case "true":
			cfg.BAM.VerifySSL = true
		case "false":
			cfg.BAM.VerifySSL = false
		default:
			slog.Default().Warn("fail parse verify ssl to bool from string", "verifySsl", verify)
		}
	}
	if timeout := os.Getenv("BAMSYNC_BAM_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.BAM.Timeout = d
		} else {
			slog.Default().Warn("fail parse timeout to duration from string", "timeout", timeout, "error", err)
		}
	}
	if cidr := os.Getenv("BAMSYNC_NETWORK_CIDR"); cidr != "" {
		cfg.Import.NetworkCIDR = cidr
	}
	if view := os.Getenv("BAMSYNC_VIEW_NAME"); view != "" {
		cfg.Import.ViewName = view
	}
	if protected := os.Getenv("BAMSYNC_PROTECTED_NAMES"); protected != "" {
		cfg.Import.ProtectedNames = strings.Split(protected, ",")
	}
	if changelogPath := os.Getenv("BAMSYNC_CHANGELOG_PATH"); changelogPath != "" {
		cfg.ChangelogPath = changelogPath
	}
	if loglevel := os.Getenv("BAMSYNC_LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv("BAMSYNC_LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}
	return &cfg, nil
}
