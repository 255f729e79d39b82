package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/ndireport/internal/model"
)

// Default configuration values.
const (
	// DefaultSiteName is used when no site name is given at the prompt or in
	// the configuration.
	DefaultSiteName = "INPUT_FABRIC_NAME_HERE"

	// DefaultDomain is the controller's built-in login domain.
	DefaultDomain = "local"

	// DefaultConnectTimeout bounds TCP connect and the TLS handshake.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultReadTimeout bounds the wait for each response.
	DefaultReadTimeout = 30 * time.Second

	// DefaultMaxBodySize limits a single API response. Large fabrics return
	// tens of thousands of endpoints in one response, so this is generous.
	DefaultMaxBodySize = 256 * 1024 * 1024 // 256MB

	// DefaultFormat is the report format.
	DefaultFormat = "xlsx"

	// DefaultOutputDir is where reports are written.
	DefaultOutputDir = "."

	// AppName is the application name used for XDG directory paths.
	AppName = "ndireport"
)

// Supported report formats.
const (
	FormatXLSX     = "xlsx"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Environment variable names.
const (
	EnvController = "NDI_IP"
	EnvDomain     = "NDI_DOMAIN"
	EnvUsername   = "NDI_USERNAME"
	EnvPassword   = "NDI_PASSWORD"
	EnvSiteName   = "NDI_SITE_NAME"
	EnvVerifyTLS  = "NDI_VERIFY_TLS"
)

// Config holds all options of an export run.
// It is built once from defaults, file, environment and flags and then
// passed to the components that need it.
type Config struct {
	// Controller is the controller address: a host ("10.0.0.1") or a URL
	// ("https://nd.example.com:8443").
	Controller string

	// Domain is the login domain.
	Domain string

	// Username is the controller account name.
	Username string

	// Password is the account password. It is never logged.
	Password string

	// SiteName is the site queried when the prompt is left blank.
	SiteName string

	// VerifyTLS enables certificate verification of the controller.
	// Disabling it lets anyone on the path read the credentials.
	VerifyTLS bool

	// CAFile is an optional PEM bundle to trust for the controller certificate.
	CAFile string

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// ConnectTimeout bounds TCP connect and the TLS handshake.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for each response.
	ReadTimeout time.Duration

	// PageSize is the number of endpoints requested per call.
	// Zero fetches the whole collection in one call.
	PageSize int

	// MaxBodySize limits each API response in bytes. Zero means no limit.
	MaxBodySize int64

	// Format is the report format: xlsx, markdown or json.
	Format string

	// OutputDir is the directory the report is written to.
	OutputDir string

	// History enables recording each export in the history database.
	History bool

	// DBDir is the directory of the history database.
	DBDir string

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON selects JSON log output.
	LogJSON bool

	// ConfigFilePath is the configuration file to load. If empty, .ndireport
	// is searched in the current directory and then the home directory.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Domain:         DefaultDomain,
		VerifyTLS:      true,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
		MaxBodySize:    DefaultMaxBodySize,
		Format:         DefaultFormat,
		OutputDir:      DefaultOutputDir,
		DBDir:          XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for ndireport.
// On Linux: ~/.local/share/ndireport
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for ndireport.
// On Linux: ~/.config/ndireport
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyFile overrides the configuration with the values set in f.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	if f.Controller != "" {
		c.Controller = f.Controller
	}
	if f.Domain != "" {
		c.Domain = f.Domain
	}
	if f.Username != "" {
		c.Username = f.Username
	}
	if f.Password != "" {
		c.Password = f.Password
	}
	if f.SiteName != "" {
		c.SiteName = f.SiteName
	}
	if f.VerifyTLS != nil {
		c.VerifyTLS = *f.VerifyTLS
	}
	if f.CAFile != "" {
		c.CAFile = f.CAFile
	}
	if f.Proxy != "" {
		c.ProxyAddress = f.Proxy
	}
	if f.ConnectTimeout > 0 {
		c.ConnectTimeout = f.ConnectTimeout
	}
	if f.ReadTimeout > 0 {
		c.ReadTimeout = f.ReadTimeout
	}
	if f.PageSize != 0 {
		c.PageSize = f.PageSize
	}
	if f.Format != "" {
		c.Format = f.Format
	}
	if f.OutputDir != "" {
		c.OutputDir = f.OutputDir
	}
	if f.History != nil {
		c.History = *f.History
	}
}

// ApplyEnv overrides the configuration with the NDI_* environment variables.
// lookup is normally os.LookupEnv. An unparsable NDI_VERIFY_TLS is ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set(EnvController, &c.Controller)
	set(EnvDomain, &c.Domain)
	set(EnvUsername, &c.Username)
	set(EnvSiteName, &c.SiteName)

	// The password is taken verbatim; surrounding spaces may be part of it.
	if v, ok := lookup(EnvPassword); ok && v != "" {
		c.Password = v
	}

	if v, ok := lookup(EnvVerifyTLS); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.VerifyTLS = b
		}
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Controller) == "" {
		return ErrNoController
	}
	if c.Username == "" {
		return ErrNoUsername
	}
	if c.Password == "" {
		return ErrNoPassword
	}
	if c.ConnectTimeout <= 0 || c.ReadTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.PageSize < 0 {
		return ErrInvalidPageSize
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !IsKnownFormat(c.Format) {
		return ErrUnknownFormat
	}
	return nil
}

// Credentials returns the login body for the configured account.
func (c *Config) Credentials() model.Credentials {
	return model.Credentials{
		Domain:   c.Domain,
		Username: c.Username,
		Password: c.Password,
	}
}

// IsKnownFormat reports whether format is a supported report format.
func IsKnownFormat(format string) bool {
	switch format {
	case FormatXLSX, FormatMarkdown, FormatJSON:
		return true
	default:
		return false
	}
}

// ResolveSiteName returns the site to query: the answer given at the prompt,
// else the configured site name, else DefaultSiteName.
func (c *Config) ResolveSiteName(answer string) string {
	if s := strings.TrimSpace(answer); s != "" {
		return s
	}
	if c.SiteName != "" {
		return c.SiteName
	}
	return DefaultSiteName
}
