/*
Package ecosystem tests downstream projects against a local build or a published release of a core library.

Everything happens within a [Session], which owns the workspace all repositories are cloned into, the environment every
command sees and the [Runner] executing those commands. A session is created with [NewSession].

The core library is checked out with [Session.SetupCore] and built with [Session.BuildCore].
Downstream projects are described by a [SuiteDescriptor] and run with [Session.RunSuite], which
  - synchronizes the project's repository to its [RepoRef] using a [Synchronizer],
  - optionally verifies that the project passes on its own dependencies,
  - rewrites the project's package.json so that the core packages resolve to the local build using an [OverrideEngine],
  - and builds and tests the project.

Suites are collected in a [Registry]. Built-in suites register themselves with [DefaultRegistry], suites declared in a
config file read with [GetConfig] are registered at startup.

When a suite breaks, [Bisector.Bisect] finds the core library commit responsible by driving git bisect over its history,
using a [Probe] which rebuilds the core library and reruns the suites to decide whether a commit is good or bad.
Release and documentation commits are skipped.
*/
package ecosystem
