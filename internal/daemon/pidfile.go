package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

var errInvalidPIDFile = errors.New("invalid pid file")

// readPID returns the PID stored at path. A missing file yields an error
// matching fs.ErrNotExist; unparseable content yields errInvalidPIDFile.
func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("%w: %s", errInvalidPIDFile, path)
	}
	return pid, nil
}

// createPIDFile writes pid to path, failing if the file already exists.
func createPIDFile(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing pid file: %w", err)
	}
	return f.Close()
}

// removePIDFile deletes path. A missing file is not an error.
func removePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
