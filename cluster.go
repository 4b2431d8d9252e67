package minicluster

import "context"

// Cluster is a set of processes a test can talk to.
type Cluster interface {
	// Start brings the cluster up. It returns once every stage is complete.
	Start(ctx context.Context) error

	// Stop tears the cluster down and reports how each process exited.
	Stop(ctx context.Context) ExitTrace

	ConnectionInfo() ConnectionInfo
}

// ConnectionInfo is what a client needs to reach a cluster.
type ConnectionInfo struct {
	InstanceName string   `yaml:"instance_name"`
	ZooKeepers   string   `yaml:"zookeepers"`
	LogDir       string   `yaml:"log_dir,omitempty"`
	Processes    []string `yaml:"processes,omitempty"`
}

/*
ExternalCluster is a Cluster that somebody else runs.  Start and Stop do
nothing; it exists so tests can switch between a managed and an existing
cluster without changing their code.
*/
type ExternalCluster struct {
	Info ConnectionInfo
}

func (c ExternalCluster) Start(context.Context) error {
	return nil
}

func (c ExternalCluster) Stop(context.Context) ExitTrace {
	return nil
}

func (c ExternalCluster) ConnectionInfo() ConnectionInfo {
	return c.Info
}
