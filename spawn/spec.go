package spawn

import (
	"errors"
	"fmt"
	"sort"
)

// ProcessSpec is a request for one child process.
type ProcessSpec struct {
	// Name identifies the process in logs and names its log files. It must be
	// unique within a cluster.
	Name string

	// Path is the executable to run. When empty, MainClass is run on the JVM.
	Path string

	MainClass      string
	Args           []string
	Env            map[string]string
	JavaProperties map[string]string

	// Dir is the working directory. Empty means the caller's.
	Dir string
}

func (s ProcessSpec) Validate() error {
	if s.Name == "" {
		return errors.New("process name is required")
	}
	if s.Path == "" && s.MainClass == "" {
		return fmt.Errorf("process %s: an executable path or main class is required", s.Name)
	}
	return nil
}

func (s ProcessSpec) environment(base []string) []string {
	env := append([]string(nil), base...)
	for _, key := range sortedKeys(s.Env) {
		env = append(env, key+"="+s.Env[key])
	}
	return env
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
