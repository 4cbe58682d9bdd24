package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/sim/world"
)

// ErrStop ends a ForEach walk early without an error.
var ErrStop = errors.New("stop")

// segments lists prefix's segment files under dir in write order.
func segments(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func forEachLine(path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ForEachTick calls fn for every tick entry under worldDir, in tick order.
func ForEachTick(worldDir string, fn func(world.TickLogEntry) error) error {
	files, err := segments(filepath.Join(worldDir, "ticks"), "ticks")
	if err != nil {
		return err
	}
	for _, p := range files {
		err := forEachLine(p, func(b []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(b, &e); err != nil {
				return fmt.Errorf("decode tick entry: %w", err)
			}
			return fn(e)
		})
		if errors.Is(err, ErrStop) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ForEachAudit calls fn for every audit entry under worldDir.
func ForEachAudit(worldDir string, fn func(world.AuditEntry) error) error {
	files, err := segments(filepath.Join(worldDir, "audit"), "audit")
	if err != nil {
		return err
	}
	for _, p := range files {
		err := forEachLine(p, func(b []byte) error {
			var e world.AuditEntry
			if err := json.Unmarshal(b, &e); err != nil {
				return fmt.Errorf("decode audit entry: %w", err)
			}
			return fn(e)
		})
		if errors.Is(err, ErrStop) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
