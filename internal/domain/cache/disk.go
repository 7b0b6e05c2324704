package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/domain/fingerprint"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/monitoring"
)

const fileExt = ".json"

// disk persists entries as {root}/{domain}/{fingerprint}.json.
// Every error is logged and swallowed; callers see a miss.
type disk struct {
	root      string
	domainCap int
	log       *zap.Logger
	metrics   *monitoring.Metrics
}

func newDisk(root string, domainCap int, log *zap.Logger, metrics *monitoring.Metrics) *disk {
	return &disk{root: root, domainCap: domainCap, log: log, metrics: metrics}
}

// sanitize makes a path component safe for any filesystem
func sanitize(s string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_")
	s = r.Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

func (d *disk) domainDir(domain string) string {
	return filepath.Join(d.root, sanitize(domain))
}

func (d *disk) path(key string) string {
	return filepath.Join(d.domainDir(fingerprint.DomainOf(key)), sanitize(key)+fileExt)
}

func (d *disk) fail(op, path string, err error) {
	d.log.Warn("disk cache error", zap.String("op", op), zap.String("path", path), zap.Error(err))
	d.metrics.RecordDiskError(op)
}

// load reads an entry. Corrupt files are deleted and reported as a miss.
func (d *disk) load(key string) (*entry, bool) {
	p := d.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.fail("read", p, err)
		}
		return nil, false
	}

	var e entry
	if err := sonic.ConfigStd.Unmarshal(data, &e); err != nil || e.Value == nil {
		if err == nil {
			err = errors.New("entry has no value")
		}
		d.fail("decode", p, err)
		d.removeFile(p)
		return nil, false
	}
	e.Key = key
	return &e, true
}

// save writes the full entry and trims the domain down to its cap
func (d *disk) save(e *entry) {
	p := d.path(e.Key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		d.fail("mkdir", p, err)
		return
	}

	data, err := sonic.ConfigStd.Marshal(e)
	if err != nil {
		d.fail("encode", p, err)
		return
	}

	if err := d.writeAtomic(p, data); err != nil {
		d.fail("write", p, err)
		return
	}

	d.enforceCap(filepath.Dir(p))
}

// writeAtomic writes through a uniquely named temp file in the same
// directory, so concurrent writers of one key never share a temp path
func (d *disk) writeAtomic(p string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		d.removeFile(tmp)
		return err
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		d.removeFile(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		d.removeFile(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		d.removeFile(tmp)
		return err
	}
	return nil
}

// enforceCap deletes the oldest files by mtime until the domain fits
func (d *disk) enforceCap(dir string) int {
	names, err := doublestar.Glob(os.DirFS(dir), "*"+fileExt)
	if err != nil {
		d.fail("glob", dir, err)
		return 0
	}
	if len(names) <= d.domainCap {
		return 0
	}

	type file struct {
		path  string
		mtime time.Time
	}
	files := make([]file, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, file{path: p, mtime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].mtime.Equal(files[j].mtime) {
			return files[i].path < files[j].path
		}
		return files[i].mtime.Before(files[j].mtime)
	})

	removed := 0
	for i := 0; i < len(files)-d.domainCap; i++ {
		if d.removeFile(files[i].path) {
			removed++
			d.metrics.RecordEviction("disk", "domain_cap")
		}
	}
	if removed > 0 {
		d.log.Debug("trimmed domain cache", zap.String("dir", dir), zap.Int("removed", removed))
	}
	return removed
}

func (d *disk) removeFile(p string) bool {
	if err := os.Remove(p); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.fail("remove", p, err)
		}
		return false
	}
	return true
}

func (d *disk) remove(key string) bool {
	return d.removeFile(d.path(key))
}

// removeStale deletes the file for e.Key only if it still holds e
func (d *disk) removeStale(e *entry) bool {
	cur, ok := d.load(e.Key)
	if !ok || !cur.InsertedAt.Equal(e.InsertedAt) {
		return false
	}
	return d.remove(e.Key)
}

// removeDomain deletes a domain directory and returns how many entries it held
func (d *disk) removeDomain(domain string) int {
	dir := d.domainDir(domain)
	names, _ := doublestar.Glob(os.DirFS(dir), "*"+fileExt)
	if err := os.RemoveAll(dir); err != nil {
		d.fail("remove", dir, err)
		return 0
	}
	return len(names)
}

// domains lists domain directories currently on disk
func (d *disk) domains() []string {
	dirs, err := os.ReadDir(d.root)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			d.fail("list", d.root, err)
		}
		return nil
	}

	out := make([]string, 0, len(dirs))
	for _, de := range dirs {
		if de.IsDir() {
			out = append(out, de.Name())
		}
	}
	return out
}

// stats counts domain directories and entry files
func (d *disk) stats() (domains, entries int) {
	if _, err := os.Stat(d.root); err != nil {
		return 0, 0
	}

	root := filepath.Clean(d.root)
	var nDomains, nEntries atomic.Int64
	err := fastwalk.Walk(nil, root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if de.IsDir() {
			if filepath.Clean(path) != root {
				nDomains.Add(1)
			}
			return nil
		}
		if strings.HasSuffix(de.Name(), fileExt) {
			nEntries.Add(1)
		}
		return nil
	})
	if err != nil {
		d.fail("walk", d.root, err)
	}
	return int(nDomains.Load()), int(nEntries.Load())
}
