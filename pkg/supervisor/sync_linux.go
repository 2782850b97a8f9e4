package supervisor

import "golang.org/x/sys/unix"

// SyncFilesystem flushes filesystem buffers to disk.
func SyncFilesystem() error {
	unix.Sync()
	return nil
}
