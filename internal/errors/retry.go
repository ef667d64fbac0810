package errors

import (
	"errors"
	"os"
	"strings"
	"syscall"
)

// transientSubstrings are error-message fragments that classify an IO error
// as transient. Classification is by substring/code match because wrapped
// platform errors do not always survive errors.Is across boundaries.
//
//nolint:gochecknoglobals // Read-only lookup table
var transientSubstrings = []string{
	"no such file or directory",
	"permission denied",
	"too many open files",
	"i/o timeout",
	"connection timed out",
	"resource temporarily unavailable",
}

// IsTransientIO reports whether err looks like a transient filesystem error
// worth retrying (ENOENT, EACCES, EMFILE, ETIMEDOUT and friends).
func IsTransientIO(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT, syscall.EACCES, syscall.EMFILE, syscall.ETIMEDOUT, syscall.EAGAIN:
			return true
		}
	}
	if os.IsNotExist(err) || os.IsPermission(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
