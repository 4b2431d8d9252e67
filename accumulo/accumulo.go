// Package accumulo lays out the standard mini cluster: ZooKeeper, a one-shot
// init, tablet servers, a manager and a garbage collector.
package accumulo

import (
	"fmt"
	"log/slog"

	"github.com/tedsuo/minicluster"
	"github.com/tedsuo/minicluster/config"
	"github.com/tedsuo/minicluster/readiness"
	"github.com/tedsuo/minicluster/spawn"
)

const (
	ZooKeeperMainClass = "org.apache.zookeeper.server.ZooKeeperServerMain"
	StartMainClass     = "org.apache.accumulo.start.Main"
)

// ProcessName is the name a role's process runs under, also used for its log
// files and the -Dproc flag.
func ProcessName(cfg config.Config, role string) string {
	return fmt.Sprintf("mac-%s-%s", cfg.ID, role)
}

// NewPlan builds the plan for cfg, which must be complete.
func NewPlan(cfg config.Config) minicluster.Plan {
	tservers := make([]spawn.ProcessSpec, 0, cfg.NumTabletServers)
	for i := 1; i <= cfg.NumTabletServers; i++ {
		tservers = append(tservers, serverProcess(cfg, "tserver", fmt.Sprintf("tserver-%d", i)))
	}

	initProcess := accumuloProcess(cfg, "init", "init")
	initProcess.Args = append(initProcess.Args,
		"--instance-name", cfg.InstanceName,
		"--password", cfg.RootPassword,
	)

	return minicluster.Plan{
		Dependency: zookeeper(cfg),
		Stages: []minicluster.Stage{
			{Name: "init", Kind: minicluster.OneShot, Processes: []spawn.ProcessSpec{initProcess}},
			{Name: "tserver", Kind: minicluster.Daemon, Processes: tservers},
			{Name: "manager", Kind: minicluster.Daemon, Processes: []spawn.ProcessSpec{serverProcess(cfg, "manager", "manager")}},
			{Name: "gc", Kind: minicluster.Daemon, Processes: []spawn.ProcessSpec{serverProcess(cfg, "gc", "gc")}},
		},
	}
}

func zookeeper(cfg config.Config) *minicluster.Dependency {
	dependency := &minicluster.Dependency{
		Addr:    cfg.ZooKeepers(),
		Timeout: cfg.ZooKeeper.StartupTimeout,
	}

	if cfg.UseExistingZooKeeper() {
		// Four letter words are often disabled on shared ensembles.
		dependency.External = true
		dependency.Checker = readiness.DialChecker{}
		return dependency
	}

	dependency.Checker = readiness.RUOK
	dependency.Process = spawn.ProcessSpec{
		Name:           ProcessName(cfg, "zookeeper"),
		MainClass:      ZooKeeperMainClass,
		Args:           []string{cfg.ZooCfgFile()},
		JavaProperties: cfg.JavaProperties.For("zookeeper"),
		Dir:            cfg.BaseDir,
	}
	return dependency
}

func accumuloProcess(cfg config.Config, role, name string) spawn.ProcessSpec {
	return spawn.ProcessSpec{
		Name:           ProcessName(cfg, name),
		MainClass:      StartMainClass,
		Args:           []string{role},
		JavaProperties: cfg.JavaProperties.For(role),
		Env: map[string]string{
			"ACCUMULO_HOME":     cfg.BaseDir,
			"ACCUMULO_CONF_DIR": cfg.ConfDir(),
			"ACCUMULO_LOG_DIR":  cfg.LogDir(),
		},
		Dir: cfg.BaseDir,
	}
}

// serverProcess is a long running Accumulo server, bound to cfg.BindAddress
// when one is set.
func serverProcess(cfg config.Config, role, name string) spawn.ProcessSpec {
	spec := accumuloProcess(cfg, role, name)
	if cfg.BindAddress != "" {
		spec.Args = append(spec.Args, "-a", cfg.BindAddress)
	}
	return spec
}

/*
New completes cfg and returns a MiniCluster for it.  Start creates the
directory layout before launching anything.  A nil registrar stops the
cluster on SIGINT or SIGTERM.
*/
func New(cfg config.Config, logger *slog.Logger, registrar minicluster.TeardownRegistrar) (*minicluster.MiniCluster, error) {
	if err := cfg.Complete(); err != nil {
		return nil, err
	}

	spawner := spawn.NewSpawner(spawn.Config{
		JavaHome:    cfg.JavaHome,
		Classpath:   spawn.StaticClasspath(cfg.Classpath),
		LogToFiles:  cfg.LogToFiles,
		LogDir:      cfg.LogDir(),
		StopTimeout: cfg.StopTimeout,
		Logger:      logger,
	})

	return minicluster.New(minicluster.Options{
		Plan:               NewPlan(cfg),
		Spawner:            spawner,
		InstanceName:       cfg.InstanceName,
		ZooKeepers:         cfg.ZooKeepers(),
		Prepare:            cfg.CreateDirectoryStructure,
		Registrar:          registrar,
		OneShotTimeout:     cfg.OneShotTimeout,
		DaemonStartTimeout: cfg.DaemonStartTimeout,
		RollbackOnFailure:  cfg.RollbackOnFailure,
		Logger:             logger,
	})
}
