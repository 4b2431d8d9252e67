package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grouper"
	"github.com/tedsuo/ifrit/sigmon"
	"gopkg.in/yaml.v3"

	"github.com/tedsuo/minicluster"
	"github.com/tedsuo/minicluster/accumulo"
	"github.com/tedsuo/minicluster/inspector"
	"github.com/tedsuo/minicluster/logging"
	"github.com/tedsuo/minicluster/status"
)

var (
	statusAddr string
	healthAddr string
	stackFile  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a cluster and keep it running until interrupted",
	Long: "Start ZooKeeper, initialize an instance and launch its servers, then print the connection info. " +
		"SIGINT or SIGTERM stops every process. SIGUSR2 writes goroutine stacks to the stack file.",
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	// sigmon owns SIGINT and SIGTERM here, so the cluster does not register
	// its own handler.
	cluster, err := accumulo.New(cfg, logger, minicluster.NopRegistrar{})
	if err != nil {
		return err
	}

	if stackFile == "" {
		stackFile = filepath.Join(cfg.LogDir(), "stacks.txt")
	}

	statusServer := status.New(cluster, logger)

	members := grouper.Members{
		{Name: "inspector", Runner: inspector.New(stackFile, logger)},
	}
	if statusAddr != "" {
		members = append(members, grouper.Member{Name: "status-http", Runner: statusServer.HTTPRunner(statusAddr)})
	}
	if healthAddr != "" {
		members = append(members, grouper.Member{Name: "status-grpc", Runner: statusServer.GRPCRunner(healthAddr)})
	}
	members = append(members,
		grouper.Member{Name: "cluster", Runner: minicluster.NewRunner(cluster, 0)},
		grouper.Member{Name: "serving", Runner: statusServer.ServingRunner()},
	)

	process := ifrit.Invoke(sigmon.New(grouper.NewOrdered(os.Interrupt, members)))

	select {
	case err := <-process.Wait():
		return err
	case <-process.Ready():
	}

	info, err := yaml.Marshal(cluster.ConnectionInfo())
	if err != nil {
		process.Signal(os.Interrupt)
		<-process.Wait()
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(info))

	logger.Info("cluster is up, interrupt to stop it", "base_dir", cfg.BaseDir)

	return <-process.Wait()
}

func init() {
	runCmd.Flags().StringVar(&statusAddr, "status-addr", "", "serve /info and /healthz over HTTP on this address")
	runCmd.Flags().StringVar(&healthAddr, "health-addr", "", "serve grpc.health.v1 on this address")
	runCmd.Flags().StringVar(&stackFile, "stack-file", "", "where SIGUSR2 writes goroutine stacks (default <base_dir>/logs/stacks.txt)")
	rootCmd.AddCommand(runCmd)
}
