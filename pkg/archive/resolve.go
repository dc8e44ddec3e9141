package archive

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// maxSymlinkHops bounds symlink resolution, matching the Linux MAXSYMLINKS.
const maxSymlinkHops = 40

// cleanEntryName turns an archive member name into a clean, root-relative,
// slash separated path. Names that stay inside the root after cleaning
// ("foo/../bar") are accepted. Names that leave it are rejected.
func cleanEntryName(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	if n == "" {
		return "", fmt.Errorf("empty entry name")
	}
	if path.IsAbs(n) || hasDriveLetter(n) {
		return "", fmt.Errorf("%q: %w", name, ErrEscapesRoot)
	}
	clean := path.Clean(n)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%q: %w", name, ErrEscapesRoot)
	}
	return clean, nil
}

func hasDriveLetter(n string) bool {
	if len(n) < 2 || n[1] != ':' {
		return false
	}
	c := n[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// checkLinkTarget performs the lexical check of a symlink entry: the target
// must be relative and, joined to the link's directory, stay inside the root.
func checkLinkTarget(linkName, target string) error {
	t := strings.ReplaceAll(target, "\\", "/")
	if t == "" {
		return fmt.Errorf("symlink %q has an empty target", linkName)
	}
	if path.IsAbs(t) || hasDriveLetter(t) {
		return fmt.Errorf("symlink %q -> %q: absolute target: %w", linkName, target, ErrEscapesRoot)
	}
	joined := path.Clean(path.Join(path.Dir(linkName), t))
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return fmt.Errorf("symlink %q -> %q: %w", linkName, target, ErrEscapesRoot)
	}
	return nil
}

// resolveInside resolves rel against root one component at a time,
// following symlinks that already exist on disk. It returns the physical
// path rel denotes, or ErrEscapesRoot if any step leaves root.
//
// root must be absolute and free of symlinks (see filepath.EvalSymlinks).
// Components that do not exist yet are taken lexically.
func resolveInside(root, rel string) (string, error) {
	queue := strings.Split(filepath.ToSlash(rel), "/")
	var resolved []string
	hops := 0

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]

		switch c {
		case "", ".":
			continue
		case "..":
			if len(resolved) == 0 {
				return "", fmt.Errorf("%q: %w", rel, ErrEscapesRoot)
			}
			resolved = resolved[:len(resolved)-1]
			continue
		}

		resolved = append(resolved, c)
		p := filepath.Join(root, filepath.Join(resolved...))

		fi, err := os.Lstat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if fi.Mode()&os.ModeSymlink == 0 {
			continue
		}

		hops++
		if hops > maxSymlinkHops {
			return "", fmt.Errorf("%q: %w", rel, ErrTooManyLinks)
		}
		target, err := os.Readlink(p)
		if err != nil {
			return "", err
		}
		if filepath.IsAbs(target) {
			return "", fmt.Errorf("%q -> %q: %w", rel, target, ErrEscapesRoot)
		}

		resolved = resolved[:len(resolved)-1]
		queue = append(strings.Split(filepath.ToSlash(target), "/"), queue...)
	}

	return filepath.Join(root, filepath.Join(resolved...)), nil
}

// canonicalRoot returns the absolute, symlink-free form of dir.
func canonicalRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
