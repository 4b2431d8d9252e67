package inspector_test

import (
	"os"
	"path/filepath"
	"syscall"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tedsuo/ifrit"

	"github.com/tedsuo/minicluster/inspector"
)

var _ = Describe("Inspector", func() {
	var (
		stackPath string
		process   ifrit.Process
	)

	BeforeEach(func() {
		stackPath = filepath.Join(GinkgoT().TempDir(), "logs", "stacks.txt")
		process = ifrit.Invoke(inspector.New(stackPath, nil, syscall.SIGUSR1))
	})

	AfterEach(func() {
		process.Signal(os.Interrupt)
		Eventually(process.Wait()).Should(Receive(BeNil()))
	})

	It("writes every goroutine stack when signalled", func() {
		Ω(syscall.Kill(os.Getpid(), syscall.SIGUSR1)).Should(Succeed())

		Eventually(func() string {
			contents, _ := os.ReadFile(stackPath)
			return string(contents)
		}).Should(ContainSubstring("goroutine"))
	})

	It("writes nothing until asked", func() {
		Consistently(func() bool {
			_, err := os.Stat(stackPath)
			return os.IsNotExist(err)
		}).Should(BeTrue())
	})
})
