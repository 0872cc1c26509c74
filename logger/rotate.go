package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// rotatingFile is an append-only log file that is renamed with a timestamp
// suffix once it grows past maxSize. At most maxBackups renamed files are kept.
type rotatingFile struct {
	path       string
	maxSize    int64
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

func openRotatingFile(path string, maxSize int64, maxBackups int) (*rotatingFile, error) {
	rf := &rotatingFile{path: path, maxSize: maxSize, maxBackups: maxBackups}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *rotatingFile) open() error {
	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %v", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to get log file info: %v", err)
	}
	rf.file = file
	rf.size = info.Size()
	return nil
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}
	n, err := rf.file.Write(p)
	rf.size += int64(n)
	if err != nil {
		return n, err
	}
	if rf.maxSize > 0 && rf.size >= rf.maxSize {
		rf.rotate()
	}
	return n, nil
}

func (rf *rotatingFile) rotate() {
	rf.file.Close()
	rf.file = nil

	dir := filepath.Dir(rf.path)
	base := filepath.Base(rf.path)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	timestamp := time.Now().Format("20060102-150405.000000")
	backup := filepath.Join(dir, fmt.Sprintf("%s.%s%s", name, timestamp, ext))

	if err := os.Rename(rf.path, backup); err != nil {
		fmt.Fprintf(os.Stderr, "failed to rotate log file: %v\n", err)
	}
	rf.cleanOldLogs()

	if err := rf.open(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create new log file: %v\n", err)
	}
}

func (rf *rotatingFile) backups() []string {
	dir := filepath.Dir(rf.path)
	base := filepath.Base(rf.path)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]

	matches, err := filepath.Glob(filepath.Join(dir, name+".*"+ext))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to find old log files: %v\n", err)
		return nil
	}
	return matches
}

func (rf *rotatingFile) cleanOldLogs() {
	matches := rf.backups()
	if len(matches) <= rf.maxBackups {
		return
	}

	type fileInfo struct {
		path string
		time time.Time
	}
	files := make([]fileInfo, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		files = append(files, fileInfo{match, info.ModTime()})
	}

	// oldest first; names carry the rotation time so they break ties
	sort.Slice(files, func(i, j int) bool {
		if files[i].time.Equal(files[j].time) {
			return files[i].path < files[j].path
		}
		return files[i].time.Before(files[j].time)
	})

	for i := 0; i < len(files)-rf.maxBackups; i++ {
		os.Remove(files[i].path)
	}
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}
