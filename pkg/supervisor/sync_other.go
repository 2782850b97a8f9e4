//go:build !linux

package supervisor

import "os/exec"

// SyncFilesystem flushes filesystem buffers to disk.
func SyncFilesystem() error {
	return exec.Command("sync").Run()
}
