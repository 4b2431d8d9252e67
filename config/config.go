package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	uuid "github.com/nu7hatch/gouuid"
	"gopkg.in/yaml.v3"
)

const (
	DefaultZooKeeperHost           = "127.0.0.1"
	DefaultZooKeeperPort           = 2181
	DefaultZooKeeperStartupTimeout = 10 * time.Second
	DefaultStopTimeout             = 10 * time.Second
	DefaultNumTabletServers        = 2
)

type Config struct {
	ID           string `yaml:"id" toml:"id"`
	InstanceName string `yaml:"instance_name" toml:"instance_name"`
	RootPassword string `yaml:"root_password" toml:"root_password"`
	BaseDir      string `yaml:"base_dir" toml:"base_dir"`
	LogToFiles   bool   `yaml:"file_logging" toml:"file_logging"`
	BindAddress  string `yaml:"bind_address" toml:"bind_address"`

	NumTabletServers int `yaml:"num_tservers" toml:"num_tservers"`

	JavaHome  string   `yaml:"java_home" toml:"java_home"`
	Classpath []string `yaml:"classpath" toml:"classpath"`

	ZooKeeper      ZooKeeperConfig   `yaml:"zookeeper" toml:"zookeeper"`
	JavaProperties JavaProperties    `yaml:"java_properties" toml:"java_properties"`
	SiteProperties map[string]string `yaml:"site_properties" toml:"site_properties"`

	// Zero means wait forever.
	OneShotTimeout     time.Duration `yaml:"oneshot_timeout" toml:"oneshot_timeout"`
	DaemonStartTimeout time.Duration `yaml:"daemon_start_timeout" toml:"daemon_start_timeout"`

	StopTimeout       time.Duration `yaml:"stop_timeout" toml:"stop_timeout"`
	RollbackOnFailure bool          `yaml:"rollback_on_failure" toml:"rollback_on_failure"`

	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

type ZooKeeperConfig struct {
	Host           string            `yaml:"host" toml:"host"`
	Port           int               `yaml:"port" toml:"port"`
	StartupTimeout time.Duration     `yaml:"startup_timeout" toml:"startup_timeout"`
	Properties     map[string]string `yaml:"properties" toml:"properties"`
}

// JavaProperties are -D flags per role. Global applies to every role and
// loses to a role-specific value for the same key.
type JavaProperties struct {
	Global       map[string]string `yaml:"global" toml:"global"`
	ZooKeeper    map[string]string `yaml:"zookeeper" toml:"zookeeper"`
	Init         map[string]string `yaml:"init" toml:"init"`
	TabletServer map[string]string `yaml:"tserver" toml:"tserver"`
	Manager      map[string]string `yaml:"manager" toml:"manager"`
	GC           map[string]string `yaml:"gc" toml:"gc"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

func Default() Config {
	return Config{
		InstanceName:     "default",
		RootPassword:     "notsecure",
		NumTabletServers: DefaultNumTabletServers,
		ZooKeeper: ZooKeeperConfig{
			Host:           DefaultZooKeeperHost,
			StartupTimeout: DefaultZooKeeperStartupTimeout,
			Properties: map[string]string{
				"tickTime":               "2000",
				"maxClientCnxns":         "1000",
				"4lw.commands.whitelist": "srvr,ruok",
			},
		},
		JavaProperties: JavaProperties{
			ZooKeeper: map[string]string{
				"zookeeper.jmx.log4j.disable": "true",
			},
		},
		SiteProperties: map[string]string{
			"tserver.memory.maps.native.enabled": "false",
			"instance.secret":                    "alsonotsecure",
		},
		StopTimeout: DefaultStopTimeout,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

/*
Load reads path on top of Default, applies environment overrides, completes
and validates the result.  Files ending in .toml are parsed as TOML,
everything else as YAML.  An empty path skips the file.
*/
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}

		if strings.EqualFold(filepath.Ext(path), ".toml") {
			err = toml.Unmarshal(data, &cfg)
		} else {
			err = yaml.Unmarshal(data, &cfg)
		}
		if err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Complete(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnvOverrides follows the MINICLUSTER_SECTION_KEY pattern.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MINICLUSTER_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("MINICLUSTER_ZOOKEEPER_HOST"); v != "" {
		cfg.ZooKeeper.Host = v
	}
	if v := os.Getenv("MINICLUSTER_ZOOKEEPER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MINICLUSTER_ZOOKEEPER_PORT: %w", err)
		}
		cfg.ZooKeeper.Port = port
	}
	if v := os.Getenv("MINICLUSTER_FILE_LOGGING"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINICLUSTER_FILE_LOGGING: %w", err)
		}
		cfg.LogToFiles = enabled
	}
	if v := os.Getenv("MINICLUSTER_NUM_TSERVERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MINICLUSTER_NUM_TSERVERS: %w", err)
		}
		cfg.NumTabletServers = n
	}
	if v := os.Getenv("MINICLUSTER_BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("MINICLUSTER_JAVA_HOME"); v != "" {
		cfg.JavaHome = v
	}
	if v := os.Getenv("MINICLUSTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

/*
Complete fills in everything that must be fixed before the cluster is built:
a random ID, a base directory under the system temp dir, a free ZooKeeper
port and the site properties derived from those.  Values already set are
kept.  Complete validates the result.
*/
func (c *Config) Complete() error {
	if c.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("generating cluster id: %w", err)
		}
		c.ID = id.String()
	}

	if c.BaseDir == "" {
		c.BaseDir = filepath.Join(os.TempDir(), "minicluster-"+c.ID)
	}
	baseDir, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return fmt.Errorf("resolving base dir: %w", err)
	}
	c.BaseDir = baseDir

	if c.ZooKeeper.Host == "" {
		c.ZooKeeper.Host = DefaultZooKeeperHost
	}
	if c.ZooKeeper.Port == 0 && c.UseExistingZooKeeper() {
		c.ZooKeeper.Port = DefaultZooKeeperPort
	}
	if c.ZooKeeper.Port == 0 {
		port, err := FreePort(c.ZooKeeper.Host)
		if err != nil {
			return fmt.Errorf("choosing a zookeeper port: %w", err)
		}
		c.ZooKeeper.Port = port
	}

	if len(c.Classpath) == 0 {
		c.Classpath = []string{c.ConfDir()}
	}

	if c.SiteProperties == nil {
		c.SiteProperties = map[string]string{}
	}
	setIfUnset(c.SiteProperties, "instance.volumes", "file://"+c.DataDir())
	setIfUnset(c.SiteProperties, "general.classpaths", c.LibDir()+"/[^.].*[.]jar")
	setIfUnset(c.SiteProperties, "general.dynamic.classpaths", c.LibExtDir()+"/[^.].*[.]jar")
	setIfUnset(c.SiteProperties, "instance.zookeeper.host", c.ZooKeepers())

	if c.ZooKeeper.Properties == nil {
		c.ZooKeeper.Properties = map[string]string{}
	}
	c.ZooKeeper.Properties["dataDir"] = c.ConfDir()
	setIfUnset(c.ZooKeeper.Properties, "clientPort", strconv.Itoa(c.ZooKeeper.Port))
	if c.BindAddress != "" {
		setIfUnset(c.ZooKeeper.Properties, "clientPortAddress", c.BindAddress)
	}

	return c.Validate()
}

func setIfUnset(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

func (c Config) Validate() error {
	var errs []string

	if c.InstanceName == "" {
		errs = append(errs, "instance_name is required")
	}
	if c.NumTabletServers <= 0 {
		errs = append(errs, "num_tservers must be greater than 0")
	}
	if c.ZooKeeper.Port < 0 || c.ZooKeeper.Port > 65535 {
		errs = append(errs, "zookeeper.port must be between 0 and 65535")
	}
	if c.ZooKeeper.StartupTimeout < 0 {
		errs = append(errs, "zookeeper.startup_timeout must not be negative")
	}
	if c.OneShotTimeout < 0 || c.DaemonStartTimeout < 0 || c.StopTimeout < 0 {
		errs = append(errs, "timeouts must not be negative")
	}
	if c.BaseDir != "" {
		if info, err := os.Stat(c.BaseDir); err == nil && !info.IsDir() {
			errs = append(errs, fmt.Sprintf("base_dir %s is not a directory", c.BaseDir))
		}
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}
	return nil
}

// UseExistingZooKeeper reports whether ZooKeeper is provided from outside
// rather than started as part of the cluster.
func (c Config) UseExistingZooKeeper() bool {
	host := c.ZooKeeper.Host
	return !(host == "" || host == "localhost" || host == "127.0.0.1")
}

func (c Config) ZooKeepers() string {
	return net.JoinHostPort(c.ZooKeeper.Host, strconv.Itoa(c.ZooKeeper.Port))
}

func (c Config) ConfDir() string     { return filepath.Join(c.BaseDir, "conf") }
func (c Config) LogDir() string      { return filepath.Join(c.BaseDir, "logs") }
func (c Config) LibDir() string      { return filepath.Join(c.BaseDir, "lib") }
func (c Config) LibExtDir() string   { return filepath.Join(c.LibDir(), "ext") }
func (c Config) DataDir() string     { return filepath.Join(c.BaseDir, "accumulo-data") }
func (c Config) ZooCfgFile() string  { return filepath.Join(c.ConfDir(), "zoo.cfg") }
func (c Config) SiteXMLFile() string { return filepath.Join(c.ConfDir(), "accumulo-site.xml") }

// FreePort asks the kernel for a currently unused TCP port on host.
func FreePort(host string) (int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// For returns the merged -D properties for role: Global overlaid with the
// role's own map. Unknown roles get Global only.
func (p JavaProperties) For(role string) map[string]string {
	merged := map[string]string{}
	for k, v := range p.Global {
		merged[k] = v
	}

	var specific map[string]string
	switch role {
	case "zookeeper":
		specific = p.ZooKeeper
	case "init":
		specific = p.Init
	case "tserver":
		specific = p.TabletServer
	case "manager":
		specific = p.Manager
	case "gc":
		specific = p.GC
	}
	for k, v := range specific {
		merged[k] = v
	}
	return merged
}
