// Command shuttle is the control CLI for the shuttle transfer daemon. It
// talks to a running shuttled process over a Unix socket and can launch,
// stop, and inspect the daemon.
package main
