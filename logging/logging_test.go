package logging_test

import (
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/tedsuo/minicluster/logging"
)

var _ = Describe("Logging", func() {
	DescribeTable("ParseLevel",
		func(input string, expected slog.Level) {
			Ω(logging.ParseLevel(input)).Should(Equal(expected))
		},
		Entry("debug", "debug", slog.LevelDebug),
		Entry("upper case", "DEBUG", slog.LevelDebug),
		Entry("warn", "warn", slog.LevelWarn),
		Entry("warning", "Warning", slog.LevelWarn),
		Entry("error", "error", slog.LevelError),
		Entry("info", "info", slog.LevelInfo),
		Entry("empty", "", slog.LevelInfo),
		Entry("unknown", "trace", slog.LevelInfo),
	)

	Describe("New", func() {
		var buffer *gbytes.Buffer

		BeforeEach(func() {
			buffer = gbytes.NewBuffer()
		})

		It("writes json when asked to", func() {
			logging.New("info", "json", buffer).Info("started", "process", "zk")
			Ω(buffer).Should(gbytes.Say(`"msg":"started"`))
			Ω(buffer).Should(gbytes.Say(`"process":"zk"`))
		})

		It("writes text by default", func() {
			logging.New("info", "", buffer).Info("started")
			Ω(buffer).Should(gbytes.Say(`msg=started service=minicluster`))
		})

		It("filters below the configured level", func() {
			logger := logging.New("warn", "text", buffer)
			logger.Info("quiet")
			logger.Warn("loud")
			Ω(buffer.Contents()).ShouldNot(ContainSubstring("quiet"))
			Ω(buffer.Contents()).Should(ContainSubstring("loud"))
		})
	})

	Describe("OrDiscard", func() {
		It("substitutes a logger for nil", func() {
			Ω(logging.OrDiscard(nil)).ShouldNot(BeNil())
		})

		It("keeps a provided logger", func() {
			logger := logging.Discard()
			Ω(logging.OrDiscard(logger)).Should(BeIdenticalTo(logger))
		})
	})
})
