package render

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// minFreeBytes is the floor below which rendering refuses to start. Vertical
// clips are small but intermediate encodes are not, so keep headroom.
const minFreeBytes = 512 * 1024 * 1024

// CheckFreeSpace verifies the filesystem holding dir has room for rendering
// output. The error is terminal for the job that triggered it.
func CheckFreeSpace(dir string) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return fmt.Errorf("statfs %s: %w", dir, err)
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return &DiskSpaceError{Dir: dir, FreeBytes: free, NeedBytes: minFreeBytes}
	}
	return nil
}

// DiskSpaceError reports insufficient free space under the output directory.
type DiskSpaceError struct {
	Dir       string
	FreeBytes uint64
	NeedBytes uint64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space under %s: %d bytes free, need %d", e.Dir, e.FreeBytes, e.NeedBytes)
}

// ErrorKind classifies the failure for job status mapping. Disk pressure can
// clear between attempts, so it retries.
func (e *DiskSpaceError) ErrorKind() string { return "transient" }
