package spawn

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrClasspath = errors.New("classpath could not be resolved")

// A ClasspathLoader produces the value passed to `-cp`.
type ClasspathLoader interface {
	Classpath() (string, error)
}

// The ClasspathFunc type is an adapter to allow the use of ordinary functions
// as ClasspathLoaders.
type ClasspathFunc func() (string, error)

func (f ClasspathFunc) Classpath() (string, error) {
	return f()
}

/*
StaticClasspath is a fixed list of classpath entries.  Entries containing glob
metacharacters are expanded; a pattern that matches nothing is an error, as
is an empty list.
*/
type StaticClasspath []string

func (c StaticClasspath) Classpath() (string, error) {
	if len(c) == 0 {
		return "", fmt.Errorf("%w: no entries configured", ErrClasspath)
	}

	entries := make([]string, 0, len(c))
	for _, entry := range c {
		if !strings.ContainsAny(entry, "*?[") {
			entries = append(entries, entry)
			continue
		}

		matches, err := filepath.Glob(entry)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %s", ErrClasspath, entry, err)
		}
		if len(matches) == 0 {
			return "", fmt.Errorf("%w: %s matched nothing", ErrClasspath, entry)
		}
		entries = append(entries, matches...)
	}

	return strings.Join(entries, string(os.PathListSeparator)), nil
}
