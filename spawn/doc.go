/*
Package spawn launches the OS processes that make up a mini cluster.

A Spawner turns a ProcessSpec into a running child.  Java targets are started
as `java -Dproc=<name> -cp <classpath> [-Dk=v...] <main class> <args>`, other
targets run their executable directly.  Each child's stdout and stderr are
drained by two logpump.Pumps, into `<name>.out` and `<name>.err` under the log
directory when file logging is enabled, otherwise into the host's own
streams.

Children are placed in their own process group.  A Handle stops the whole
group: SIGTERM first, SIGKILL once the grace period runs out.

This package only builds on unix systems.
*/
package spawn
