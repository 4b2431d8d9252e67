package minicluster_test

import (
	"errors"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tedsuo/ifrit"

	"github.com/tedsuo/minicluster"
)

var _ = Describe("NewRunner", func() {
	var (
		cluster *fakeCluster
		process ifrit.Process
	)

	BeforeEach(func() {
		cluster = newFakeCluster()
		process = ifrit.Background(minicluster.NewRunner(cluster, time.Second))
	})

	It("is ready once the cluster has started", func() {
		Consistently(process.Ready()).ShouldNot(BeClosed())

		cluster.Release()

		Eventually(process.Ready()).Should(BeClosed())
		Ω(cluster.StartCalls()).Should(Equal(1))
	})

	It("stops the cluster when signalled", func() {
		cluster.Release()
		Eventually(process.Ready()).Should(BeClosed())
		Ω(cluster.StopCalls()).Should(Equal(0))

		process.Signal(os.Interrupt)

		Eventually(process.Wait()).Should(Receive(BeNil()))
		Ω(cluster.StopCalls()).Should(Equal(1))
	})

	Context("when the cluster fails to start", func() {
		BeforeEach(func() {
			cluster.StartErr = errors.New("init failed")
		})

		It("exits with the start error after stopping the cluster", func() {
			cluster.Release()

			Eventually(process.Wait()).Should(Receive(MatchError("init failed")))
			Ω(cluster.StopCalls()).Should(Equal(1))
		})
	})

	Context("when signalled during startup", func() {
		It("abandons the start and stops the cluster", func() {
			Eventually(cluster.StartCalls).Should(Equal(1))

			process.Signal(os.Interrupt)

			Eventually(process.Wait()).Should(Receive(BeNil()))
			Ω(cluster.StopCalls()).Should(Equal(1))
		})
	})
})
