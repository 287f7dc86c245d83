package fhirfs

import (
	"errors"
	"syscall"

	"github.com/fhirfs/fhirfs/internal/fhir"
)

// mapError translates a fhir.Error's Kind into the POSIX errno the FUSE
// adapter returns to the kernel, per the taxonomy in spec §7. A nil error
// maps to 0 and a syscall.Errno is returned unchanged; any other error
// that isn't a *fhir.Error falls through to EIO, mirroring
// _examples/absfs-fusefs/errors.go's default-to-EIO behavior.
func mapError(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var ferr *fhir.Error
	if errors.As(err, &ferr) {
		switch ferr.Kind {
		case fhir.KindNotFound:
			return syscall.ENOENT
		case fhir.KindInvalid:
			return syscall.EINVAL
		case fhir.KindForbidden:
			return syscall.EACCES
		case fhir.KindConflict:
			return syscall.EEXIST
		case fhir.KindProtocol:
			return syscall.EIO
		default:
			return syscall.EIO
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	return syscall.EIO
}
