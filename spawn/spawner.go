package spawn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tedsuo/minicluster/logging"
	"github.com/tedsuo/minicluster/logpump"
)

const DefaultStopTimeout = 10 * time.Second

/*
Process is a started child as seen by the orchestrator.  Handle is the only
implementation outside of tests.
*/
type Process interface {
	Name() string
	Pid() int
	Wait(ctx context.Context) (int, error)
	Stop(ctx context.Context) (int, error)
}

type Config struct {
	// JavaHome locates bin/java for Java targets. Defaults to $JAVA_HOME, then
	// to whatever `java` resolves to on $PATH.
	JavaHome  string
	Classpath ClasspathLoader

	LogToFiles bool
	LogDir     string

	// StopTimeout is the grace period between SIGTERM and SIGKILL.
	StopTimeout time.Duration

	// Stdout and Stderr receive child output when LogToFiles is false. They
	// default to the host's own streams and are never closed.
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

type Spawner struct {
	config Config
	logger *slog.Logger
}

func NewSpawner(config Config) *Spawner {
	if config.StopTimeout == 0 {
		config.StopTimeout = DefaultStopTimeout
	}
	if config.Stdout == nil {
		config.Stdout = os.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	if config.JavaHome == "" {
		config.JavaHome = os.Getenv("JAVA_HOME")
	}

	return &Spawner{
		config: config,
		logger: logging.OrDiscard(config.Logger),
	}
}

func (s *Spawner) javaBinary() string {
	if s.config.JavaHome == "" {
		return "java"
	}
	return filepath.Join(s.config.JavaHome, "bin", "java")
}

// Command returns the argument vector Spawn would execute for spec.
func (s *Spawner) Command(spec ProcessSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if spec.Path != "" {
		return append([]string{spec.Path}, spec.Args...), nil
	}

	if s.config.Classpath == nil {
		return nil, fmt.Errorf("%w: no classpath loader configured", ErrClasspath)
	}
	classpath, err := s.config.Classpath.Classpath()
	if err != nil {
		return nil, fmt.Errorf("resolving classpath for %s: %w", spec.Name, err)
	}

	argv := []string{s.javaBinary(), "-Dproc=" + spec.Name, "-cp", classpath}
	for _, key := range sortedKeys(spec.JavaProperties) {
		argv = append(argv, "-D"+key+"="+spec.JavaProperties[key])
	}
	argv = append(argv, spec.MainClass)
	return append(argv, spec.Args...), nil
}

/*
Spawn launches spec and attaches a pump to each of its output streams.  Any
error is fatal for the caller; nothing has been left running when one is
returned.
*/
func (s *Spawner) Spawn(spec ProcessSpec) (Process, error) {
	argv, err := s.Command(spec)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting process", "process", spec.Name)
	s.logger.Debug("process command", "process", spec.Name, "argv", strings.Join(argv, " "))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = spec.environment(os.Environ())
	cmd.Dir = spec.Dir
	cmd.SysProcAttr = newProcessGroup()

	// The pipes are created by hand rather than with StdoutPipe so that
	// cmd.Wait never closes the read ends underneath a pump.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe for %s: %w", spec.Name, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("creating stderr pipe for %s: %w", spec.Name, err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	err = cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdoutR.Close()
		stderrR.Close()
		return nil, fmt.Errorf("starting %s: %w", spec.Name, err)
	}

	stdout := logpump.New(spec.Name+".out", stdoutR, s.sink(spec.Name, ".out", s.config.Stdout), s.logger).Start()
	stderr := logpump.New(spec.Name+".err", stderrR, s.sink(spec.Name, ".err", s.config.Stderr), s.logger).Start()

	s.logger.Info("process started", "process", spec.Name, "pid", cmd.Process.Pid)

	return newHandle(spec.Name, cmd, stdout, stderr, s.config.StopTimeout, s.logger), nil
}

func (s *Spawner) sink(name, suffix string, inherited io.Writer) logpump.Sink {
	if s.config.LogToFiles {
		return logpump.File(filepath.Join(s.config.LogDir, name+suffix))
	}
	return logpump.Inherited(inherited)
}

// LogDir reports where process output goes, for error messages.
func (s *Spawner) LogDir() string {
	if s.config.LogToFiles {
		return s.config.LogDir
	}
	return "the console (file logging is disabled)"
}
