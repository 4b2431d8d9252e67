package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/tedsuo/minicluster/config"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		Ω(os.WriteFile(path, []byte(content), 0600)).Should(Succeed())
		return path
	}

	Describe("Complete", func() {
		It("fills in identity, directories and a zookeeper port", func() {
			cfg := config.Default()
			Ω(cfg.Complete()).Should(Succeed())

			Ω(cfg.ID).ShouldNot(BeEmpty())
			Ω(cfg.BaseDir).Should(Equal(filepath.Join(os.TempDir(), "minicluster-"+cfg.ID)))
			Ω(cfg.ZooKeeper.Port).Should(BeNumerically(">", 0))
			Ω(cfg.ZooKeepers()).Should(Equal(cfg.ZooKeeper.Host + ":" + cfg.ZooKeeper.Properties["clientPort"]))
			Ω(cfg.SiteProperties).Should(HaveKeyWithValue("instance.zookeeper.host", cfg.ZooKeepers()))
			Ω(cfg.SiteProperties).Should(HaveKeyWithValue("instance.volumes", "file://"+cfg.DataDir()))
			Ω(cfg.ZooKeeper.Properties).Should(HaveKeyWithValue("dataDir", cfg.ConfDir()))
			Ω(cfg.Classpath).Should(Equal([]string{cfg.ConfDir()}))
		})

		It("generates a different id every time", func() {
			a, b := config.Default(), config.Default()
			Ω(a.Complete()).Should(Succeed())
			Ω(b.Complete()).Should(Succeed())
			Ω(a.ID).ShouldNot(Equal(b.ID))
		})

		It("keeps explicit values", func() {
			cfg := config.Default()
			cfg.ID = "fixed"
			cfg.BaseDir = dir
			cfg.ZooKeeper.Port = 21811
			cfg.SiteProperties["instance.volumes"] = "hdfs://nn/accumulo"

			Ω(cfg.Complete()).Should(Succeed())
			Ω(cfg.ID).Should(Equal("fixed"))
			Ω(cfg.BaseDir).Should(Equal(dir))
			Ω(cfg.ZooKeepers()).Should(Equal("127.0.0.1:21811"))
			Ω(cfg.SiteProperties).Should(HaveKeyWithValue("instance.volumes", "hdfs://nn/accumulo"))
		})

		It("does not pick a port for an external zookeeper", func() {
			cfg := config.Default()
			cfg.ZooKeeper.Host = "zk.example.com"
			cfg.ZooKeeper.Port = 2181

			Ω(cfg.Complete()).Should(Succeed())
			Ω(cfg.UseExistingZooKeeper()).Should(BeTrue())
			Ω(cfg.ZooKeepers()).Should(Equal("zk.example.com:2181"))
		})

		It("uses the standard port for an external zookeeper without one", func() {
			cfg := config.Default()
			cfg.ZooKeeper.Host = "zk.example.com"

			Ω(cfg.Complete()).Should(Succeed())
			Ω(cfg.ZooKeepers()).Should(Equal("zk.example.com:2181"))
		})

		It("binds zookeeper to the bind address", func() {
			cfg := config.Default()
			cfg.BindAddress = "10.0.0.5"

			Ω(cfg.Complete()).Should(Succeed())
			Ω(cfg.ZooKeeper.Properties).Should(HaveKeyWithValue("clientPortAddress", "10.0.0.5"))
		})

		It("rejects a cluster without tablet servers", func() {
			cfg := config.Default()
			cfg.NumTabletServers = 0
			Ω(cfg.Complete()).Should(MatchError(ContainSubstring("num_tservers must be greater than 0")))
		})

		It("rejects a base dir that is a file", func() {
			cfg := config.Default()
			cfg.BaseDir = writeFile("not-a-dir", "")
			Ω(cfg.Complete()).Should(MatchError(ContainSubstring("is not a directory")))
		})
	})

	Describe("UseExistingZooKeeper", func() {
		DescribeTable("depends on the host",
			func(host string, external bool) {
				cfg := config.Default()
				cfg.ZooKeeper.Host = host
				Ω(cfg.UseExistingZooKeeper()).Should(Equal(external))
			},
			Entry("loopback address", "127.0.0.1", false),
			Entry("localhost", "localhost", false),
			Entry("remote host", "zk-0.zk", true),
		)
	})

	Describe("Load", func() {
		BeforeEach(func() {
			GinkgoT().Setenv("MINICLUSTER_BASE_DIR", "")
			GinkgoT().Setenv("MINICLUSTER_ZOOKEEPER_PORT", "")
			GinkgoT().Setenv("MINICLUSTER_FILE_LOGGING", "")
			GinkgoT().Setenv("MINICLUSTER_NUM_TSERVERS", "")
		})

		It("reads yaml", func() {
			path := writeFile("cluster.yaml", `
instance_name: itest
num_tservers: 3
file_logging: true
oneshot_timeout: 2m
zookeeper:
  port: 21811
  startup_timeout: 5s
java_properties:
  global:
    root_log_level: ERROR
`)
			cfg, err := config.Load(path)
			Ω(err).ShouldNot(HaveOccurred())
			Ω(cfg.InstanceName).Should(Equal("itest"))
			Ω(cfg.NumTabletServers).Should(Equal(3))
			Ω(cfg.LogToFiles).Should(BeTrue())
			Ω(cfg.OneShotTimeout).Should(Equal(2 * time.Minute))
			Ω(cfg.ZooKeeper.Port).Should(Equal(21811))
			Ω(cfg.ZooKeeper.StartupTimeout).Should(Equal(5 * time.Second))
			Ω(cfg.JavaProperties.For("tserver")).Should(HaveKeyWithValue("root_log_level", "ERROR"))
		})

		It("reads toml", func() {
			path := writeFile("cluster.toml", `
instance_name = "itest"
root_password = "secret"
stop_timeout = "3s"

[zookeeper]
port = 21812
`)
			cfg, err := config.Load(path)
			Ω(err).ShouldNot(HaveOccurred())
			Ω(cfg.InstanceName).Should(Equal("itest"))
			Ω(cfg.RootPassword).Should(Equal("secret"))
			Ω(cfg.StopTimeout).Should(Equal(3 * time.Second))
			Ω(cfg.ZooKeeper.Port).Should(Equal(21812))
		})

		It("applies environment overrides on top of the file", func() {
			path := writeFile("cluster.yaml", "num_tservers: 3\n")
			GinkgoT().Setenv("MINICLUSTER_NUM_TSERVERS", "5")
			GinkgoT().Setenv("MINICLUSTER_BASE_DIR", dir)
			GinkgoT().Setenv("MINICLUSTER_FILE_LOGGING", "true")

			cfg, err := config.Load(path)
			Ω(err).ShouldNot(HaveOccurred())
			Ω(cfg.NumTabletServers).Should(Equal(5))
			Ω(cfg.BaseDir).Should(Equal(dir))
			Ω(cfg.LogToFiles).Should(BeTrue())
		})

		It("rejects malformed environment overrides", func() {
			GinkgoT().Setenv("MINICLUSTER_ZOOKEEPER_PORT", "two thousand")
			_, err := config.Load("")
			Ω(err).Should(MatchError(ContainSubstring("MINICLUSTER_ZOOKEEPER_PORT")))
		})

		It("works without a file", func() {
			cfg, err := config.Load("")
			Ω(err).ShouldNot(HaveOccurred())
			Ω(cfg.InstanceName).Should(Equal("default"))
		})

		It("fails for a missing file", func() {
			_, err := config.Load(filepath.Join(dir, "missing.yaml"))
			Ω(err).Should(MatchError(ContainSubstring("reading config file")))
		})

		It("fails for unparseable content", func() {
			path := writeFile("broken.yaml", "num_tservers: [")
			_, err := config.Load(path)
			Ω(err).Should(MatchError(ContainSubstring("parsing config file")))
		})
	})

	Describe("JavaProperties.For", func() {
		It("overlays role properties on the global ones", func() {
			props := config.JavaProperties{
				Global:  map[string]string{"a": "global", "b": "global"},
				Manager: map[string]string{"b": "manager"},
			}
			Ω(props.For("manager")).Should(Equal(map[string]string{"a": "global", "b": "manager"}))
			Ω(props.For("gc")).Should(Equal(map[string]string{"a": "global", "b": "global"}))
		})
	})
})
