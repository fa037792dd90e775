//go:build unix

package page

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func decommit(region []byte) error {
	if len(region) == 0 {
		return nil
	}

	err := unix.Madvise(region, unix.MADV_DONTNEED)
	if err != nil {
		return errors.Wrap(err, "madvise failed")
	}
	return nil
}
