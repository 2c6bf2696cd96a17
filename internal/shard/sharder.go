// Package shard groups genai-bench result files into one folder per
// (api backend, traffic scenario) pair so they can be plotted side by side.
package shard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/signalnine/benchshard/internal/metadata"
	"github.com/signalnine/benchshard/internal/result"
)

type Options struct {
	SourceDir     string
	ResultsDir    string
	MetadataFile  string
	ResultPattern string
	// SkipInvalid leaves directories with degenerate keys out of the results tree.
	SkipInvalid bool
	Out         io.Writer
	Logger      *zap.Logger
}

type Sharder struct {
	opts Options
	log  *zap.Logger
}

func New(opts Options) *Sharder {
	if opts.MetadataFile == "" {
		opts.MetadataFile = "experiment_metadata.json"
	}
	if opts.ResultPattern == "" {
		opts.ResultPattern = "N*.json"
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Sharder{opts: opts, log: log}
}

// Run makes one sequential pass over the source tree. Filesystem errors abort
// the pass; metadata problems are recorded as warnings on the summary.
func (s *Sharder) Run(ctx context.Context) (*result.Summary, error) {
	if s.opts.SourceDir == "" || s.opts.ResultsDir == "" {
		return nil, errors.New("source and results directories are required")
	}
	info, err := os.Stat(s.opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("source dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source dir %s is not a directory", s.opts.SourceDir)
	}
	resultsAbs, err := filepath.Abs(s.opts.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("resolving results dir: %w", err)
	}

	start := time.Now()
	summary := &result.Summary{
		SourceDir:  s.opts.SourceDir,
		ResultsDir: s.opts.ResultsDir,
		StartedAt:  start.UTC(),
		Groups:     map[string][]string{},
	}
	origin := map[string]string{}

	err = filepath.WalkDir(s.opts.SourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if abs, absErr := filepath.Abs(path); absErr == nil && abs == resultsAbs {
			return filepath.SkipDir
		}
		summary.DirsScanned++
		return s.processDir(path, summary, origin)
	})
	summary.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		return summary, fmt.Errorf("sharding %s: %w", s.opts.SourceDir, err)
	}
	return summary, nil
}

func (s *Sharder) processDir(dir string, summary *result.Summary, origin map[string]string) error {
	metaPath := filepath.Join(dir, s.opts.MetadataFile)
	info, err := os.Stat(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", metaPath, err)
	}
	if info.IsDir() {
		return nil
	}

	key, problems := s.keyFor(metaPath)
	if len(problems) > 0 {
		w := result.Warning{Dir: dir, Key: key, Reason: strings.Join(problems, "; ")}
		summary.Warnings = append(summary.Warnings, w)
		s.log.Warn("degenerate group key",
			zap.String("dir", dir),
			zap.String("key", key),
			zap.String("reason", w.Reason))
		if s.opts.SkipInvalid {
			summary.SkippedDirs = append(summary.SkippedDirs, dir)
			fmt.Fprintf(s.opts.Out, "Skipping %s (%s)\n", dir, w.Reason)
			return nil
		}
	}

	fmt.Fprintf(s.opts.Out, "Processing %s -> %s\n", dir, key)
	dest, err := result.EnsureGroupDir(s.opts.ResultsDir, key)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(s.opts.ResultPattern, e.Name()); !ok {
			continue
		}
		src := filepath.Join(dir, e.Name())
		if fi, err := os.Stat(src); err != nil || !fi.Mode().IsRegular() {
			continue
		}
		id := key + "/" + e.Name()
		if prev, seen := origin[id]; seen && prev != dir {
			s.log.Warn("result file overwritten by another run",
				zap.String("group", key),
				zap.String("file", e.Name()),
				zap.String("previous", prev),
				zap.String("current", dir))
		}
		if err := copyFile(src, filepath.Join(dest, e.Name())); err != nil {
			return err
		}
		origin[id] = dir
		summary.AddFile(key, e.Name())
		summary.FilesCopied++
		s.log.Debug("copied result", zap.String("src", src), zap.String("group", key))
	}
	summary.DirsSharded++
	return nil
}

func (s *Sharder) keyFor(metaPath string) (string, []string) {
	meta, err := metadata.Read(metaPath)
	if err != nil {
		// Unreadable metadata leaves both fields empty.
		return "_", []string{err.Error()}
	}
	return Key(meta)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}
	return nil
}
