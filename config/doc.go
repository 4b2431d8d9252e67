/*
Package config holds the value object a mini cluster is built from.

A Config starts from Default, is optionally overlaid with a YAML or TOML file
and MINICLUSTER_* environment variables (Load), and must be completed before
use so that its identity, base directory and ZooKeeper port are fixed:

	cfg := config.Default()
	cfg.NumTabletServers = 1
	if err := cfg.Complete(); err != nil { ... }

CreateDirectoryStructure lays out the base directory and writes conf/zoo.cfg
and conf/accumulo-site.xml when they are not already present.
*/
package config
