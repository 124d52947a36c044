// Copyright 2020 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
)

func FileExists(filename string) bool {
	f, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !f.IsDir()
}

// CopyFileContents copies the contents of the file named src to the file named
// by dst. The file will be created if it does not already exist. If the
// destination file exists, all it's contents will be replaced by the contents
// of the source file.
func CopyFileContents(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return
	}
	err = out.Sync()
	return
}

// createTemp and rename are replaced in tests to force the fallback paths.
var (
	createTemp = os.CreateTemp //nolint:gochecknoglobals
	rename     = os.Rename     //nolint:gochecknoglobals
)

// AtomicWriteFile replaces the file at path with content.
//
// The content is written and synced to a temporary file in the directory of path
// which is then renamed over path, so readers see either the old or the new file.
// If no temporary file can be created in that directory, the system temp dir is used
// instead. That fallback is only atomic when both live on the same filesystem,
// otherwise the move degrades to copy and delete.
//
// An existing file keeps its permissions, a new one is created with perm.
func AtomicWriteFile(path string, content []byte, perm os.FileMode) (err error) {
	if fi, serr := os.Stat(path); serr == nil {
		perm = fi.Mode().Perm()
	}

	pattern := "." + filepath.Base(path) + ".tmp-*"
	sameDir := true

	tmp, err := createTemp(filepath.Dir(path), pattern)
	if err != nil {
		log.Debugf("can't create temporary file next to %s, using %s: %v", path, os.TempDir(), err)

		sameDir = false

		tmp, err = createTemp("", pattern)
		if err != nil {
			return errors.WithStack(renewerrors.IOError(err, "creating temporary file"))
		}
	}

	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if err = writeAndClose(tmp, content, perm); err != nil {
		return errors.WithStack(renewerrors.IOError(err, "writing temporary file %s", tmpName))
	}

	rerr := rename(tmpName, path)
	switch {
	case rerr == nil:
		return nil
	case sameDir:
		return errors.WithStack(renewerrors.IOError(rerr, "moving %s into place", tmpName))
	}

	log.Warnf("renaming %s to %s failed (%v), copying instead, the update is not atomic", tmpName, path, rerr)

	if err = CopyFileContents(tmpName, path); err != nil {
		return errors.WithStack(renewerrors.IOError(err, "copying %s to %s", tmpName, path))
	}

	if rmErr := os.Remove(tmpName); rmErr != nil {
		log.Warnf("failed to remove temporary file %s: %v", tmpName, rmErr)
	}

	return nil
}

func writeAndClose(f *os.File, content []byte, perm os.FileMode) error {
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return err
	}

	return os.Chmod(f.Name(), perm)
}
