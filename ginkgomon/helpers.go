package ginkgomon

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tedsuo/ifrit"

	"github.com/tedsuo/minicluster"
)

func Invoke(runner ifrit.Runner) ifrit.Process {
	process := ifrit.Background(runner)

	select {
	case <-process.Ready():
	case err := <-process.Wait():
		ginkgo.Fail(fmt.Sprintf("process failed to start: %s", err))
	}

	return process
}

func Interrupt(process ifrit.Process, intervals ...interface{}) {
	if process != nil {
		process.Signal(os.Interrupt)
		EventuallyWithOffset(1, process.Wait(), intervals...).Should(Receive(), "interrupted ginkgomon process failed to exit in time")
	}
}

func Kill(process ifrit.Process, intervals ...interface{}) {
	if process != nil {
		process.Signal(os.Kill)
		EventuallyWithOffset(1, process.Wait(), intervals...).Should(Receive(), "killed ginkgomon process failed to exit in time")
	}
}

/*
InvokeCluster starts cluster and fails the current test if it does not come
up within timeout.  The cluster is stopped when the current test (or the container
it was invoked from) finishes, and every process must stop cleanly.
*/
func InvokeCluster(cluster minicluster.Cluster, timeout time.Duration) minicluster.Cluster {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ginkgo.DeferCleanup(func() {
		StopCluster(cluster, timeout)
	})

	err := cluster.Start(ctx)
	ExpectWithOffset(1, err).ShouldNot(HaveOccurred(), "cluster failed to start")

	return cluster
}

// StopCluster stops cluster and fails the current test if any process could
// not be stopped.
func StopCluster(cluster minicluster.Cluster, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	trace := cluster.Stop(ctx)
	ExpectWithOffset(1, trace.Err()).ShouldNot(HaveOccurred())
}
