package content

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/dziadu-dev/cardsync/internal/describe"
	"github.com/dziadu-dev/cardsync/internal/logging"
)

// Scanner walks category folders into Structures.
type Scanner struct {
	fs       afero.Fs
	baseURL  string
	describe *describe.Deriver
	logger   *logging.Logger

	cacheHits atomic.Int64
}

// NewScanner creates a Scanner reading through fsys. A nil deriver gets a
// fresh one; a nil logger discards output.
func NewScanner(fsys afero.Fs, baseURL string, deriver *describe.Deriver, logger *logging.Logger) *Scanner {
	if deriver == nil {
		deriver = describe.New()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Scanner{
		fs:       fsys,
		baseURL:  baseURL,
		describe: deriver,
		logger:   logger,
	}
}

// CacheHits returns how many scans were served from the cache.
func (s *Scanner) CacheHits() int64 {
	return s.cacheHits.Load()
}

// Scan returns the Structure of folderPath, published under folderName.
//
// When cache is non-nil and holds a Structure for folderName whose
// fingerprint equals the folder's current one, the cached value is returned
// without classifying the tree. Otherwise the folder is walked and the
// result stored in cache. A missing folder yields an empty Structure.
func (s *Scanner) Scan(cache *Cache, folderPath, folderName string) (Structure, error) {
	info, err := s.fs.Stat(folderPath)
	if err != nil || !info.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat %s: %w", folderPath, err)
		}
		s.logger.Printf("Warning: folder does not exist: %s", folderPath)
		return Structure{}, nil
	}

	hash, err := Fingerprint(s.fs, folderPath)
	if err != nil {
		// Without a fingerprint the cache cannot be trusted; walk anyway.
		s.logger.Printf("Warning: %v", err)
	}

	if cache != nil {
		if cached, ok := cache.Lookup(folderName, hash); ok {
			s.cacheHits.Add(1)
			s.logger.Printf("Cache: %s (%d sections)", folderName, len(cached))
			return cached, nil
		}
		if prev := cache.Hash(folderName); prev != "" && prev != hash {
			s.logger.Printf("Change detected: %s", folderName)
		}
	}

	structure := Structure{}
	entries, err := afero.ReadDir(s.fs, folderPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", folderPath, err)
	}

	for _, entry := range entries {
		if isHidden(entry) {
			continue
		}
		switch {
		case entry.IsDir():
			if err := s.scanSection(structure, folderPath, folderName, entry.Name()); err != nil {
				return nil, err
			}
		case isHTML(entry):
			s.addFile(structure, folderName, "", nil, entry.Name())
		}
	}

	if cache != nil && hash != "" {
		cache.Store(folderName, hash, structure)
	}
	s.logger.Printf("Scanned: %s (%d sections)", folderName, len(structure))
	return structure, nil
}

// scanSection files a first-level directory. Its html files become direct
// tasks, and each of its subdirectories is scanned as a subsection.
func (s *Scanner) scanSection(structure Structure, root, category, section string) error {
	dir := filepath.Join(root, section)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return fmt.Errorf("failed to read section %s: %w", dir, err)
	}

	var subdirs []string
	for _, entry := range entries {
		if isHidden(entry) {
			continue
		}
		if entry.IsDir() {
			subdirs = append(subdirs, entry.Name())
			continue
		}
		if isHTML(entry) {
			s.addFile(structure, category, section, []string{section}, entry.Name())
		}
	}

	for _, sub := range subdirs {
		if err := s.scanSubsection(structure, dir, category, section, sub); err != nil {
			return err
		}
	}
	return nil
}

// scanSubsection turns a second-level directory into folder tasks: the
// directory itself when it has an index.html, otherwise each of its
// non-hidden subdirectories.
func (s *Scanner) scanSubsection(structure Structure, sectionDir, category, section, sub string) error {
	dir := filepath.Join(sectionDir, sub)

	if info, err := s.fs.Stat(filepath.Join(dir, "index.html")); err == nil && !info.IsDir() {
		s.addFolder(structure, category, section, sub, []string{section, sub}, sub)
		return nil
	}

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return fmt.Errorf("failed to read subsection %s: %w", dir, err)
	}
	for _, entry := range entries {
		if isHidden(entry) || !entry.IsDir() {
			continue
		}
		s.addFolder(structure, category, section, sub, []string{section, sub, entry.Name()}, entry.Name())
	}
	return nil
}

func (s *Scanner) addFile(structure Structure, category, section string, dirSegments []string, fileName string) {
	title := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	segments := append(append([]string{}, dirSegments...), fileName)
	structure.addTask(section, "", Task{
		Title:       title,
		Description: s.describe.Derive(title),
		URL:         TaskURL(s.baseURL, category, segments, KindFile),
		Kind:        KindFile,
	})
}

func (s *Scanner) addFolder(structure Structure, category, section, subsection string, segments []string, title string) {
	structure.addTask(section, subsection, Task{
		Title:       title,
		Description: s.describe.Derive(title),
		URL:         TaskURL(s.baseURL, category, segments, KindFolder),
		Kind:        KindFolder,
	})
}

func isHidden(info os.FileInfo) bool {
	return strings.HasPrefix(info.Name(), ".")
}

func isHTML(info os.FileInfo) bool {
	return !info.IsDir() && strings.EqualFold(filepath.Ext(info.Name()), ".html")
}
