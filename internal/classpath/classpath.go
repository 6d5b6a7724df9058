package classpath

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/nao1215/annoscan/internal/model"
)

// ClassSuffix is the file name suffix of compiled classes.
const ClassSuffix = ".class"

// archiveExts are the root file extensions treated as class archives.
var archiveExts = map[string]bool{
	".jar": true,
	".zip": true,
	".war": true,
}

// ErrNotCandidate is returned by Open for a candidate whose archive entry
// no longer exists.
var ErrNotCandidate = errors.New("candidate not found")

// Enumerator resolves namespaces against an explicit list of class path
// roots. A root is either a directory or a class archive (.jar, .zip, .war).
//
// An Enumerator caches opened archives so that Open on many members of the
// same archive reads its central directory once. Call Close when done.
type Enumerator struct {
	roots     []string
	exclude   []string
	recursive bool
	logger    *slog.Logger

	mu       sync.Mutex
	archives map[string]*archive
}

// archive is an opened class archive with its members indexed by name.
type archive struct {
	rc      *zip.ReadCloser
	members map[string]*zip.File
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithExclude skips class files whose base name matches any of the glob
// patterns (e.g. "*Test.class", "package-info.class").
func WithExclude(patterns ...string) Option {
	return func(e *Enumerator) {
		e.exclude = append(e.exclude, patterns...)
	}
}

// WithRecursive controls whether sub-namespaces are scanned. Default true.
func WithRecursive(recursive bool) Option {
	return func(e *Enumerator) {
		e.recursive = recursive
	}
}

// WithLogger sets the logger used for skipped roots and directories.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Enumerator) {
		e.logger = logger
	}
}

// NewEnumerator creates an Enumerator over roots, consulted in order.
func NewEnumerator(roots []string, opts ...Option) *Enumerator {
	e := &Enumerator{
		roots:     roots,
		recursive: true,
		archives:  make(map[string]*archive),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Roots returns the configured roots.
func (e *Enumerator) Roots() []string {
	return e.roots
}

// Enumerate returns every class file under namespace across all roots, in
// root order and, within a root, in depth-first lexical order.
//
// A namespace that does not exist under a root contributes nothing. Roots
// or directories that cannot be read are logged and skipped. The only error
// returned is for an invalid namespace or a cancelled context.
func (e *Enumerator) Enumerate(ctx context.Context, namespace string) ([]model.CandidateFile, error) {
	ns, err := model.ParseNamespace(namespace)
	if err != nil {
		return nil, err
	}

	files := make([]model.CandidateFile, 0)
	for _, root := range e.roots {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		abs, err := filepath.Abs(root)
		if err != nil {
			e.logger.Warn("skipping class path root", "root", root, "error", err)
			continue
		}

		info, err := os.Stat(abs)
		if err != nil {
			e.logger.Debug("class path root not found", "root", abs, "error", err)
			continue
		}

		var found []model.CandidateFile
		switch {
		case info.IsDir():
			found, err = e.enumerateDir(ctx, abs, ns)
		case isArchive(abs):
			found, err = e.enumerateArchive(abs, ns)
		default:
			e.logger.Warn("skipping class path root: not a directory or archive", "root", abs)
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return files, ctxErr
			}
			e.logger.Warn("skipping class path root", "root", abs, "error", err)
			continue
		}

		e.logger.Debug("enumerated class path root",
			"root", abs,
			"namespace", ns,
			"candidates", len(found),
		)
		files = append(files, found...)
	}

	return files, nil
}

// enumerateDir walks root/<namespace path> depth first.
func (e *Enumerator) enumerateDir(ctx context.Context, root string, ns model.Namespace) ([]model.CandidateFile, error) {
	dir := filepath.Join(root, filepath.FromSlash(ns.Path()))
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		e.logger.Debug("namespace not present under root", "root", root, "namespace", ns)
		return nil, nil
	}

	var files []model.CandidateFile
	if err := e.walk(ctx, root, dir, ns, map[string]bool{}, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// walk visits dir in lexical order. Subdirectories extend the namespace by
// their name. Symlinked directories are followed unless they lead back to a
// directory already on the current path. Unreadable subdirectories are
// logged and skipped.
func (e *Enumerator) walk(ctx context.Context, root, dir string, ns model.Namespace, ancestors map[string]bool, files *[]model.CandidateFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		e.logger.Warn("skipping unreadable directory", "dir", dir, "error", err)
		return nil
	}
	if ancestors[resolved] {
		e.logger.Debug("skipping directory cycle", "dir", dir, "target", resolved)
		return nil
	}
	ancestors[resolved] = true
	defer delete(ancestors, resolved)

	entries, err := os.ReadDir(dir)
	if err != nil {
		e.logger.Warn("skipping unreadable directory", "dir", dir, "error", err)
		return nil
	}

	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		isFile := entry.Type().IsRegular()
		if entry.Type()&fs.ModeSymlink != 0 {
			target, err := os.Stat(full)
			if err != nil {
				e.logger.Debug("skipping dangling symlink", "path", full)
				continue
			}
			isDir = target.IsDir()
			isFile = target.Mode().IsRegular()
		}

		switch {
		case isDir:
			if !e.recursive {
				continue
			}
			if err := e.walk(ctx, root, full, ns.Child(entry.Name()), ancestors, files); err != nil {
				return err
			}
		case isFile && e.accept(entry.Name()):
			*files = append(*files, model.CandidateFile{
				Path:      full,
				Root:      root,
				Namespace: ns,
			})
		}
	}
	return nil
}

// enumerateArchive lists archive members under the namespace prefix,
// sorted segment by segment so that the order matches a directory walk.
func (e *Enumerator) enumerateArchive(archivePath string, ns model.Namespace) ([]model.CandidateFile, error) {
	a, err := e.openArchive(archivePath)
	if err != nil {
		return nil, err
	}

	prefix := ns.Path()
	if prefix != "" {
		prefix += "/"
	}

	var files []model.CandidateFile
	for _, f := range a.rc.File {
		name := f.Name
		if !strings.HasPrefix(name, prefix) || f.FileInfo().IsDir() {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		dir, base := path.Split(rest)
		if dir != "" && !e.recursive {
			continue
		}
		if !e.accept(base) {
			continue
		}
		files = append(files, model.CandidateFile{
			Path:      archivePath,
			Entry:     name,
			Root:      archivePath,
			Namespace: namespaceOf(ns, dir),
		})
	}

	sort.SliceStable(files, func(i, j int) bool { return entryLess(files[i].Entry, files[j].Entry) })
	return files, nil
}

// entryLess compares slash-separated entry names one path segment at a time,
// so "p/a/X.class" sorts before "p/a.class" as os.ReadDir would list them.
func entryLess(a, b string) bool {
	as, bs := strings.Split(a, "/"), strings.Split(b, "/")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}

// namespaceOf extends ns with the slash-delimited relative directory dir.
func namespaceOf(ns model.Namespace, dir string) model.Namespace {
	for _, seg := range strings.Split(strings.Trim(dir, "/"), "/") {
		if seg != "" {
			ns = ns.Child(seg)
		}
	}
	return ns
}

// accept reports whether a base name is a class file that is not excluded.
func (e *Enumerator) accept(base string) bool {
	if !strings.HasSuffix(base, ClassSuffix) {
		return false
	}
	for _, pattern := range e.exclude {
		if matched, _ := path.Match(pattern, base); matched {
			return false
		}
	}
	return true
}

// Open opens the candidate for reading. The caller must close the result.
func (e *Enumerator) Open(c model.CandidateFile) (io.ReadCloser, error) {
	if !c.InArchive() {
		return os.Open(c.Path) //nolint:gosec // Path comes from enumeration of user-supplied roots
	}

	a, err := e.openArchive(c.Path)
	if err != nil {
		return nil, err
	}
	f, ok := a.members[c.Entry]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotCandidate, c.Location())
	}
	return f.Open()
}

// openArchive returns the cached archive, opening it on first use.
func (e *Enumerator) openArchive(p string) (*archive, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a, ok := e.archives[p]; ok {
		return a, nil
	}
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", p, err)
	}
	a := &archive{rc: rc, members: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		if _, dup := a.members[f.Name]; !dup {
			a.members[f.Name] = f
		}
	}
	e.archives[p] = a
	return a, nil
}

// Close releases all cached archives.
func (e *Enumerator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for p, a := range e.archives {
		if err := a.rc.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(e.archives, p)
	}
	return errors.Join(errs...)
}

// Enumerate is a convenience wrapper that lists candidates for namespace
// across roots with default options.
func Enumerate(namespace string, roots []string) ([]model.CandidateFile, error) {
	e := NewEnumerator(roots)
	defer e.Close()
	return e.Enumerate(context.Background(), namespace)
}

func isArchive(p string) bool {
	return archiveExts[strings.ToLower(filepath.Ext(p))]
}
