// Package pathalloc allocates collision-free file paths inside a batch's
// storage directory using a numeric-suffix probe with a random fallback.
package pathalloc

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// maxProbes bounds the numeric-suffix scheme before switching to a random
// name to guarantee forward progress on pathological directories.
const maxProbes = 100

// Allocate returns a path under dir that does not exist at call time,
// probing baseName.ext, baseName_1.ext, baseName_2.ext, ... After maxProbes
// collisions it falls back to a random 128-bit hex name. The returned path
// is not reserved: callers must create the file immediately, and concurrent
// allocation against the same directory can still race in the window
// between probe and create.
func Allocate(dir, baseName, extWithDot string) (path, filename string, err error) {
	filename = baseName + extWithDot
	path = filepath.Join(dir, filename)

	for counter := 1; exists(path); counter++ {
		if counter > maxProbes {
			filename = randomHex() + extWithDot
			path = filepath.Join(dir, filename)
			if exists(path) {
				return "", "", fmt.Errorf("pathalloc: random fallback %q already exists", path)
			}
			return path, filename, nil
		}
		filename = fmt.Sprintf("%s_%d%s", baseName, counter, extWithDot)
		path = filepath.Join(dir, filename)
	}

	return path, filename, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func randomHex() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}
