// Package sysstat samples host load indicators from /proc and the kernel:
// CPU utilization, block-device queue depth, available memory, running
// process names, and interactive session counts. The samplers feed the
// admission-control monitors.
package sysstat
