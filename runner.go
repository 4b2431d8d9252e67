package minicluster

import (
	"context"
	"os"
	"time"

	"github.com/tedsuo/ifrit"
)

// NewRunner adapts a Cluster into an ifrit.Runner. The runner is ready once
// Start returns and exits after the first signal, once Stop has finished.
// A StopTimeout of zero leaves Stop unbounded.
func NewRunner(cluster Cluster, stopTimeout time.Duration) ifrit.Runner {
	return &runner{cluster: cluster, stopTimeout: stopTimeout}
}

type runner struct {
	cluster     Cluster
	stopTimeout time.Duration
}

func (r *runner) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan error, 1)
	go func() {
		started <- r.cluster.Start(ctx)
	}()

	select {
	case err := <-started:
		if err != nil {
			r.stop()
			return err
		}
	case <-signals:
		cancel()
		<-started
		return r.stop()
	}

	close(ready)

	<-signals
	return r.stop()
}

func (r *runner) stop() error {
	ctx, cancel := withOptionalTimeout(context.Background(), r.stopTimeout)
	defer cancel()
	return r.cluster.Stop(ctx).Err()
}
