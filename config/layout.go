package config

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

/*
CreateDirectoryStructure creates the base, conf, logs, lib and lib/ext
directories and writes conf/zoo.cfg and conf/accumulo-site.xml.  Existing
configuration files are left untouched so a caller can pre-seed them.
*/
func (c Config) CreateDirectoryStructure() error {
	if info, err := os.Stat(c.BaseDir); err == nil && !info.IsDir() {
		return fmt.Errorf("base directory %s is not a directory", c.BaseDir)
	}

	for _, dir := range []string{c.BaseDir, c.ConfDir(), c.LogDir(), c.LibDir(), c.LibExtDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if err := writeIfMissing(c.ZooCfgFile(), func() ([]byte, error) {
		return marshalProperties(c.ZooKeeper.Properties), nil
	}); err != nil {
		return err
	}

	return writeIfMissing(c.SiteXMLFile(), func() ([]byte, error) {
		return marshalSiteXML(c.SiteProperties)
	})
}

func writeIfMissing(path string, render func() ([]byte, error)) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	data, err := render()
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

var propertyEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "=", `\=`, ":", `\:`)

// marshalProperties renders m in java.util.Properties format, sorted by key.
func marshalProperties(m map[string]string) []byte {
	var buf bytes.Buffer
	for _, key := range sortedKeys(m) {
		fmt.Fprintf(&buf, "%s=%s\n", propertyEscaper.Replace(key), propertyEscaper.Replace(m[key]))
	}
	return buf.Bytes()
}

type siteConfiguration struct {
	XMLName    xml.Name       `xml:"configuration"`
	Properties []siteProperty `xml:"property"`
}

type siteProperty struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

func marshalSiteXML(m map[string]string) ([]byte, error) {
	site := siteConfiguration{}
	for _, key := range sortedKeys(m) {
		site.Properties = append(site.Properties, siteProperty{Name: key, Value: m[key]})
	}

	out, err := xml.MarshalIndent(site, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
