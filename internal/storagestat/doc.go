// Package storagestat tracks drive free space and grace-location expiry. Both
// scans are independently rate limited to bound filesystem load; results are
// reporting-only and never trigger deletion.
package storagestat
