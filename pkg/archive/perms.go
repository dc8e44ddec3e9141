package archive

import (
	"io/fs"
	"os"
	"path/filepath"
)

const (
	ownerFileBits fs.FileMode = 0o600
	ownerDirBits  fs.FileMode = 0o700
)

// normalizePermissions grants the owner read/write on every file and
// read/write/execute on every directory under root (chmod -R u+rwX).
// Bits are only ever added. Symlinks are skipped.
func normalizePermissions(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// An unreadable directory is fixed before it is descended into,
			// so a walk error here is a real failure.
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		want := ownerFileBits
		if d.IsDir() {
			want = ownerDirBits
		}
		mode := info.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
		if mode&want == want {
			return nil
		}
		return os.Chmod(p, mode|want)
	})
}
