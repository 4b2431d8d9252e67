/*
Ephemeral multi-process clusters for integration tests.

A MiniCluster brings a cluster up in strict stages.  First a coordination
dependency (ZooKeeper for Accumulo) is started, unless one is provided from
outside, and polled until it reports ok.  Then each Stage runs in order:
OneShot stages run their processes to completion and require exit code 0,
Daemon stages start their processes and leave them running.  No stage starts
before the previous one has finished or become ready.

Every process the cluster starts joins its managed set.  Stop makes exactly
one termination attempt per managed process, in reverse start order, and
never gives up on the rest because one of them misbehaved.  Start and Stop
are both idempotent; extra calls log a warning and do nothing.

A Cluster can be run as an ifrit.Runner with NewRunner, which makes it
composable with ifrit's sigmon and grouper packages.

The accumulo package builds the standard Accumulo plan from a config.Config.
*/
package minicluster
