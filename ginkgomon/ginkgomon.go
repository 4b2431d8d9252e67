/*
Package ginkgomon runs clusters and binaries from Ginkgo specs.

InvokeCluster is the usual entry point: it starts a cluster inside a test and
stops it again when the test finishes.  Runner launches an executable, such as
the minicluster CLI, as an ifrit.Runner whose output goes to the GinkgoWriter.
*/
package ginkgomon

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"
)

type Runner struct {
	Name              string
	BinPath           string
	AnsiColorCode     string
	StartCheck        string
	StartCheckTimeout time.Duration
	Args              []string
	Env               []string

	session *gexec.Session
}

func (r *Runner) Run(sigChan <-chan os.Signal, ready chan<- struct{}) error {
	cmd := exec.Command(r.BinPath, r.Args...)
	if r.Env != nil {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	session, err := gexec.Start(
		cmd,
		gexec.NewPrefixedWriter(fmt.Sprintf("\x1b[32m[o]\x1b[%s[%s]\x1b[0m ", r.AnsiColorCode, r.Name), ginkgo.GinkgoWriter),
		gexec.NewPrefixedWriter(fmt.Sprintf("\x1b[91m[e]\x1b[%s[%s]\x1b[0m ", r.AnsiColorCode, r.Name), ginkgo.GinkgoWriter),
	)
	Ω(err).ShouldNot(HaveOccurred())
	r.session = session

	if r.StartCheck != "" {
		timeout := r.StartCheckTimeout
		if timeout == 0 {
			timeout = time.Second
		}

		Eventually(session, timeout).Should(gbytes.Say(r.StartCheck))
	}

	close(ready)

	for {
		select {
		case signal := <-sigChan:
			session.Signal(signal)

		case <-session.Exited:
			if session.ExitCode() == 0 {
				return nil
			}
			return fmt.Errorf("exit status %d", session.ExitCode())
		}
	}
}

// Buffer holds everything the binary has written to stdout so far. The
// StartCheck has already been read from it, so match later output with
// gbytes.Say or inspect Contents.
func (r *Runner) Buffer() *gbytes.Buffer {
	return r.session.Out
}

// ErrBuffer holds everything the binary has written to stderr so far.
func (r *Runner) ErrBuffer() *gbytes.Buffer {
	return r.session.Err
}
