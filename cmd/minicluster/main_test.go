package main_test

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"
	"github.com/tedsuo/ifrit"
	"golang.org/x/net/nettest"

	"github.com/tedsuo/minicluster/ginkgomon"
)

const fakeJava = `#!/bin/sh
echo "java $*"
case "$*" in
  *" init "*) exit 0 ;;
esac
exec sleep 60
`

func freeAddr() string {
	listener, err := nettest.NewLocalListener("tcp")
	Ω(err).ShouldNot(HaveOccurred())
	addr := listener.Addr().String()
	listener.Close()
	return addr
}

var _ = Describe("minicluster", func() {
	var (
		baseDir    string
		configFile string
		zk         net.Listener
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		baseDir = filepath.Join(dir, "cluster")

		javaHome := filepath.Join(dir, "java")
		Ω(os.MkdirAll(filepath.Join(javaHome, "bin"), 0755)).Should(Succeed())
		Ω(os.WriteFile(filepath.Join(javaHome, "bin", "java"), []byte(fakeJava), 0755)).Should(Succeed())

		var err error
		zk, err = nettest.NewLocalListener("tcp")
		Ω(err).ShouldNot(HaveOccurred())
		go func() {
			for {
				conn, err := zk.Accept()
				if err != nil {
					return
				}
				buf := make([]byte, 5)
				conn.Read(buf)
				conn.Write([]byte("imok"))
				conn.Close()
			}
		}()

		configFile = filepath.Join(dir, "minicluster.toml")
		Ω(os.WriteFile(configFile, []byte(fmt.Sprintf(`
id = "cli"
instance_name = "clitest"
base_dir = %q
java_home = %q
num_tservers = 1
stop_timeout = "2s"

[zookeeper]
port = %d
`, baseDir, javaHome, zk.Addr().(*net.TCPAddr).Port)), 0644)).Should(Succeed())
	})

	AfterEach(func() {
		zk.Close()
	})

	Describe("run", func() {
		var (
			statusAddr string
			runner     *ginkgomon.Runner
			process    ifrit.Process
		)

		BeforeEach(func() {
			statusAddr = freeAddr()
			runner = &ginkgomon.Runner{
				Name:              "minicluster",
				BinPath:           binPath,
				AnsiColorCode:     "33m",
				Args:              []string{"run", "--config", configFile, "--file-logging", "--status-addr", statusAddr},
				StartCheck:        "instance_name: clitest",
				StartCheckTimeout: 10 * time.Second,
			}
			process = ginkgomon.Invoke(runner)
		})

		AfterEach(func() {
			ginkgomon.Interrupt(process, 10*time.Second)
		})

		It("prints how to connect", func() {
			Ω(runner.Buffer()).Should(gbytes.Say("zookeepers: " + zk.Addr().String()))
			Ω(runner.Buffer()).Should(gbytes.Say("mac-cli-gc"))
		})

		It("reports healthy over HTTP", func() {
			Eventually(func() int {
				resp, err := http.Get("http://" + statusAddr + "/healthz")
				if err != nil {
					return 0
				}
				resp.Body.Close()
				return resp.StatusCode
			}).Should(Equal(http.StatusOK))
		})

		It("writes process output under the base dir", func() {
			Eventually(filepath.Join(baseDir, "logs", "mac-cli-init.out")).Should(BeARegularFile())
		})

		It("stops every process and exits cleanly when interrupted", func() {
			process.Signal(os.Interrupt)
			Eventually(process.Wait(), 10*time.Second).Should(Receive(BeNil()))
			Ω(runner.ErrBuffer()).Should(gbytes.Say("cluster stopped"))
		})
	})

	Describe("config", func() {
		It("prints the effective configuration", func() {
			cmd := exec.Command(binPath, "config", "--config", configFile)
			cmd.Env = append(os.Environ(), "MINICLUSTER_NUM_TSERVERS=4")

			session, err := gexec.Start(cmd, GinkgoWriter, GinkgoWriter)
			Ω(err).ShouldNot(HaveOccurred())
			Eventually(session).Should(gexec.Exit(0))

			Ω(session.Out).Should(gbytes.Say("instance_name: clitest"))
			Ω(session.Out).Should(gbytes.Say("num_tservers: 4"))
		})

		It("fails on an unreadable config file", func() {
			session, err := gexec.Start(exec.Command(binPath, "config", "--config", "/nonexistent.yaml"), GinkgoWriter, GinkgoWriter)
			Ω(err).ShouldNot(HaveOccurred())
			Eventually(session).Should(gexec.Exit(1))
			Ω(session.Err).Should(gbytes.Say("minicluster:"))
		})
	})
})
