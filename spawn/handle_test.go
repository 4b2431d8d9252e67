package spawn_test

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/tedsuo/minicluster/spawn"
)

var _ = Describe("Handle", func() {
	var (
		spawner *spawn.Spawner
		stdout  *gbytes.Buffer
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		stdout = gbytes.NewBuffer()
		spawner = spawn.NewSpawner(spawn.Config{
			StopTimeout: 200 * time.Millisecond,
			Stdout:      stdout,
			Stderr:      gbytes.NewBuffer(),
		})
	})

	Describe("Stop", func() {
		It("terminates a running process", func() {
			process, err := spawner.Spawn(shell("daemon", "echo ready; exec sleep 60"))
			Ω(err).ShouldNot(HaveOccurred())
			Eventually(stdout).Should(gbytes.Say("ready"))

			code, err := process.Stop(ctx)
			Ω(err).ShouldNot(HaveOccurred())
			Ω(code).Should(Equal(-1))
			Ω(syscall.Kill(process.Pid(), 0)).Should(MatchError(syscall.ESRCH))
		})

		It("kills a process that ignores SIGTERM", func() {
			process, err := spawner.Spawn(shell("stubborn", "trap '' TERM; echo ready; while true; do sleep 1; done"))
			Ω(err).ShouldNot(HaveOccurred())
			Eventually(stdout).Should(gbytes.Say("ready"))

			start := time.Now()
			code, err := process.Stop(ctx)
			Ω(err).ShouldNot(HaveOccurred())
			Ω(code).Should(Equal(-1))
			Ω(time.Since(start)).Should(BeNumerically(">=", 200*time.Millisecond))
		})

		It("returns the stale exit code of a process that already exited", func() {
			process, err := spawner.Spawn(shell("oneshot", "exit 7"))
			Ω(err).ShouldNot(HaveOccurred())
			Eventually(process.(*spawn.Handle).Exited()).Should(BeClosed())

			code, err := process.Stop(ctx)
			Ω(err).ShouldNot(HaveOccurred())
			Ω(code).Should(Equal(7))
		})

		It("only stops the process once", func() {
			process, err := spawner.Spawn(shell("daemon", "exec sleep 60"))
			Ω(err).ShouldNot(HaveOccurred())

			var wg sync.WaitGroup
			codes := make([]int, 3)
			for i := range codes {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					codes[i], _ = process.Stop(ctx)
				}(i)
			}
			wg.Wait()

			Ω(codes).Should(Equal([]int{-1, -1, -1}))
		})

		It("flushes output written before the stop", func() {
			process, err := spawner.Spawn(shell("daemon", "echo last words; exec sleep 60"))
			Ω(err).ShouldNot(HaveOccurred())
			Eventually(stdout, 2*time.Second).Should(gbytes.Say("last words"))

			_, err = process.Stop(ctx)
			Ω(err).ShouldNot(HaveOccurred())
		})
	})

	Describe("Wait", func() {
		It("gives up when the context is done", func() {
			process, err := spawner.Spawn(shell("daemon", "exec sleep 60"))
			Ω(err).ShouldNot(HaveOccurred())
			defer process.Stop(ctx)

			waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			_, err = process.Wait(waitCtx)
			Ω(err).Should(MatchError(context.DeadlineExceeded))
		})

		It("does not signal the group of a process that exited cleanly", func() {
			process, err := spawner.Spawn(shell("detacher", "sleep 60 </dev/null >/dev/null 2>&1 & echo \"pid $!\""))
			Ω(err).ShouldNot(HaveOccurred())
			Ω(process.Wait(ctx)).Should(Equal(0))
			Eventually(stdout).Should(gbytes.Say(`pid \d+`))

			match := regexp.MustCompile(`pid (\d+)`).FindSubmatch(stdout.Contents())
			Ω(match).ShouldNot(BeNil())
			grandchild, err := strconv.Atoi(string(match[1]))
			Ω(err).ShouldNot(HaveOccurred())
			defer syscall.Kill(grandchild, syscall.SIGKILL)

			_, err = process.Stop(ctx)
			Ω(err).ShouldNot(HaveOccurred())
			Consistently(func() error { return syscall.Kill(grandchild, 0) }, 300*time.Millisecond).Should(Succeed())
		})

		It("returns once a grandchild holding the pipes outlives the process", func() {
			process, err := spawner.Spawn(shell("forker", "sleep 60 & echo forked"))
			Ω(err).ShouldNot(HaveOccurred())

			Ω(process.Wait(ctx)).Should(Equal(0))
			Ω(stdout).Should(gbytes.Say("forked"))

			_, err = process.Stop(ctx)
			Ω(err).ShouldNot(HaveOccurred())
		})
	})
})
