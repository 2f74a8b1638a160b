// Copyright The Rye Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package diskvol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ryedb/ryecore/internal/config"
	"github.com/ryedb/ryecore/internal/logstub"
)

// Manager owns every open Volume in the process, keyed by volid.
type Manager struct {
	mu      sync.RWMutex
	volumes map[int32]*Volume
	log     *zap.SugaredLogger

	// volumeDir and nextVolid support on-demand volume creation by the
	// auto-extend router: a new volume file is written
	// alongside the ones opened from config, numbered past the highest
	// volid already seen at startup.
	volumeDir string
	nextVolid int32
	tmpl      config.VolumeConfig
}

func NewManager(log *zap.SugaredLogger) *Manager {
	return &Manager{volumes: make(map[int32]*Volume), log: log, nextVolid: 1}
}

func (m *Manager) Get(volid int32) (*Volume, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.volumes[volid]
	return v, ok
}

func (m *Manager) put(volid int32, v *Volume) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volumes[volid] = v
}

// All returns a stable snapshot of the currently open volumes.
func (m *Manager) All() []*Volume {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Volume, 0, len(m.volumes))
	for _, v := range m.volumes {
		out = append(out, v)
	}
	return out
}

// FormatAll formats every volume listed in cfg concurrently, fanning out
// through an errgroup — a batch of independent volume files, no cross-volume
// ordering requirement, so the natural shape is "start them all, wait for
// the first error or for everyone to finish".
func (m *Manager) FormatAll(ctx context.Context, cfg *config.Config, appenderFor func(volid int32) logstub.Appender) error {
	m.adoptTemplate(cfg)
	g, _ := errgroup.WithContext(ctx)
	for _, vc := range cfg.Volumes {
		vc := vc
		g.Go(func() error {
			purpose, err := ParsePurpose(vc.Purpose)
			if err != nil {
				return err
			}
			v, err := Format(FormatParams{
				Volid:        vc.Volid,
				Path:         vc.Path,
				Purpose:      purpose,
				MaxNpages:    vc.MaxNpages,
				ExtendNpages: vc.ExtendNpages,
				WriteRateCap: int32(vc.WriteRateCap),
			}, appenderFor(vc.Volid), m.log)
			if err != nil {
				return fmt.Errorf("format volume %d: %w", vc.Volid, err)
			}
			m.put(vc.Volid, v)
			return nil
		})
	}
	return g.Wait()
}

// OpenAll opens every volume listed in cfg concurrently.
func (m *Manager) OpenAll(ctx context.Context, cfg *config.Config, appenderFor func(volid int32) logstub.Appender) error {
	m.adoptTemplate(cfg)
	g, _ := errgroup.WithContext(ctx)
	for _, vc := range cfg.Volumes {
		vc := vc
		g.Go(func() error {
			v, err := Open(vc.Path, appenderFor(vc.Volid))
			if err != nil {
				return fmt.Errorf("open volume %d: %w", vc.Volid, err)
			}
			m.put(vc.Volid, v)
			return nil
		})
	}
	return g.Wait()
}

// adoptTemplate remembers the directory volumes live in and one GENERIC
// entry's max_npages/extend_npages/write_rate_cap, plus a volid counter
// seeded past the highest configured volid, so CreateVolume has sane
// defaults for a volume config never lists explicitly.
func (m *Manager) adoptTemplate(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vc := range cfg.Volumes {
		if vc.Volid >= m.nextVolid {
			m.nextVolid = vc.Volid + 1
		}
		if m.volumeDir == "" {
			m.volumeDir = filepath.Dir(vc.Path)
		}
		if vc.Purpose == "PERM_GENERIC" {
			m.tmpl = vc
		}
	}
	if m.tmpl.MaxNpages == 0 && len(cfg.Volumes) > 0 {
		m.tmpl = cfg.Volumes[0]
	}
}

// Grow extends an open GENERIC volume's total_pages by addPages, capped at
// max_npages, and emits the RVDK_INIT_PAGES record the new page range's
// redo payload describes. Pages beyond sys_lastpage are already
// covered by the bitmaps (sized to max_npages at format time, ),
// so growth only needs to move the total_pages/total_sects/free_pages/
// free_sects counters forward; no bitmap resize is needed.
func (m *Manager) Grow(ctx context.Context, volid int32, addPages int32) error {
	v, ok := m.Get(volid)
	if !ok {
		return fmt.Errorf("diskvol: grow: volume %d not open", volid)
	}
	if err := v.AcquireExclusiveWithRetry(ctx); err != nil {
		return err
	}
	defer v.Unlock()

	h := &v.Header
	if h.Purpose != PermGeneric {
		return fmt.Errorf("diskvol: grow: volume %d is not PERM_GENERIC", volid)
	}
	if h.TotalPages >= h.MaxNpages {
		return fmt.Errorf("%w: volume %d already at max_npages", ErrFormatBadParams, volid)
	}
	grow := addPages
	if h.TotalPages+grow > h.MaxNpages {
		grow = h.MaxNpages - h.TotalPages
	}

	f, err := os.OpenFile(v.Path, os.O_RDWR, 0o640)
	if err != nil {
		return fmt.Errorf("%w: reopen %q for growth: %v", ErrFormatIO, v.Path, err)
	}
	defer f.Close()
	if err := f.Truncate(int64(h.TotalPages+grow) * PageSize); err != nil {
		return fmt.Errorf("%w: grow %q to %d pages: %v", ErrFormatIO, v.Path, h.TotalPages+grow, err)
	}

	start := h.TotalPages
	oldSects := h.TotalSects
	h.TotalPages += grow
	h.TotalSects = ceilDiv(h.TotalPages, h.SectNpgs)
	h.FreePages += grow
	h.FreeSects += h.TotalSects - oldSects

	payload := make([]byte, 12)
	putBE32(payload[0:4], h.Volid)
	putBE32(payload[4:8], start)
	putBE32(payload[8:12], grow)
	if _, err := v.Appender.Append(logstub.Record{Verb: logstub.RVDKInitPages, Redo: payload}); err != nil {
		return err
	}
	return nil
}

// CreateVolume formats and opens a brand-new volume for purpose, using the
// sizing/path conventions of the most recently configured volumes. The
// router calls this for a new TEMP volume, or for a new GENERIC volume once
// the registered auto-extend volume maxes out. hintVolid is accepted for
// interface symmetry with the router's extension request but unused here;
// placement policy (which directory, which volid) is process-wide, not
// per-hint.
func (m *Manager) CreateVolume(ctx context.Context, purpose Purpose, hintVolid int32) (int32, error) {
	m.mu.Lock()
	volid := m.nextVolid
	m.nextVolid++
	dir, tmpl := m.volumeDir, m.tmpl
	m.mu.Unlock()

	if dir == "" || tmpl.MaxNpages == 0 {
		return 0, fmt.Errorf("diskvol: create volume: no template volume configured")
	}

	path := filepath.Join(dir, fmt.Sprintf("vol_%s_%d", purpose, volid))
	v, err := Format(FormatParams{
		Volid:        volid,
		Path:         path,
		Purpose:      purpose,
		MaxNpages:    tmpl.MaxNpages,
		ExtendNpages: tmpl.ExtendNpages,
		WriteRateCap: int32(tmpl.WriteRateCap),
	}, logstub.NopAppender{}, m.log)
	if err != nil {
		return 0, fmt.Errorf("diskvol: create volume %d: %w", volid, err)
	}
	m.put(volid, v)
	return volid, nil
}

// CheckAllInvariants validates every open volume, aggregating failures.
func (m *Manager) CheckAllInvariants() error {
	var errs error
	for _, v := range m.All() {
		v.RLock()
		err := v.CheckInvariants()
		v.RUnlock()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("volume %d: %w", v.Header.Volid, err))
		}
	}
	return errs
}
