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
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"

	"github.com/ryedb/ryecore/internal/logstub"
)

// FormatParams are the inputs to Format.
type FormatParams struct {
	Volid        int32
	Path         string
	Purpose      Purpose
	MaxNpages    int32
	ExtendNpages int32
	WriteRateCap int32
}

const maxPathLen = 4096

// Format creates the OS-level backing file and writes a header meeting
// every invariant, with SAT/PAT pre-allocated for the header
// and both bitmap tables. For PERM volumes an RVDK_FORMAT redo record is
// appended so crash recovery can recreate the file; TEMP volumes use
// logstub.TempLSA and emit nothing.
func Format(p FormatParams, appender logstub.Appender, log *zap.SugaredLogger) (*Volume, error) {
	if len(p.Path) == 0 || len(p.Path) > maxPathLen {
		return nil, fmt.Errorf("%w: path length %d out of bounds", ErrFormatBadParams, len(p.Path))
	}

	h, err := NewHeader(p.Volid, p.Purpose, p.MaxNpages, p.ExtendNpages)
	if err != nil {
		return nil, err
	}
	h.WriteRateCap = p.WriteRateCap

	isTemp := p.Purpose == PermTemp || p.Purpose == TempTemp
	if isTemp {
		appender = logstub.NopAppender{}
		h.Chkpt = logstub.TempLSA
	}

	if err := preflightDiskSpace(p.Path, int64(h.TotalPages)*PageSize, log); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(p.Path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("%w: create %q: %v", ErrFormatIO, p.Path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(h.TotalPages) * PageSize); err != nil {
		return nil, fmt.Errorf("%w: size %q to %d pages: %v", ErrFormatIO, p.Path, h.TotalPages, err)
	}

	v := newVolume(p.Path, h, appender)
	v.initBitmaps()

	if err := v.writeHeaderPage(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormatIO, err)
	}

	if !isTemp {
		redo, encErr := v.Header.encode()
		if encErr != nil {
			return nil, encErr
		}
		if _, err := appender.Append(logstub.Record{
			Verb: logstub.RVDKFormat,
			Undo: []byte(p.Path),
			Redo: redo,
		}); err != nil {
			return nil, fmt.Errorf("%w: log RVDK_FORMAT: %v", ErrFormatIO, err)
		}
	}

	if log != nil {
		log.Infow("formatted volume",
			"volid", p.Volid, "purpose", p.Purpose.String(), "path", p.Path,
			"total_pages", v.Header.TotalPages, "max_npages", v.Header.MaxNpages,
			"sys_lastpage", v.Header.SysLastpage)
	}

	return v, nil
}

// preflightDiskSpace rejects a format request early when the target
// filesystem plainly doesn't have room, turning a late write failure into
// an immediate, specific error.
func preflightDiskSpace(path string, wantBytes int64, log *zap.SugaredLogger) error {
	dir := filepath.Dir(path)
	usage, err := disk.Usage(dir)
	if err != nil {
		// Best-effort: if we can't even stat the filesystem, let the
		// actual file creation surface the real error instead.
		if log != nil {
			log.Debugw("disk usage preflight skipped", "dir", dir, "err", err)
		}
		return nil
	}
	if int64(usage.Free) < wantBytes {
		return fmt.Errorf("%w: %q has %d bytes free, need %d", ErrFormatIO, dir, usage.Free, wantBytes)
	}
	return nil
}

// initBitmaps sets the pre-allocated system bits (header + SAT + PAT
// pages) and derives free_pages/free_sects from the bitmap popcounts, so
// bits 0..sys_lastpage of PAT are set from the moment the volume exists.
func (v *Volume) initBitmaps() {
	h := &v.Header
	sysPages := int(h.SysLastpage) + 1
	v.PAT.SetRange(0, sysPages)

	sysSects := int(ceilDiv(int32(sysPages), SectNpgs))
	v.SAT.SetRange(0, sysSects)

	h.FreePages = h.TotalPages - int32(sysPages)
	h.FreeSects = h.TotalSects - int32(sysSects)
}

// writeHeaderPage serializes the header into page 0 of the backing file.
func (v *Volume) writeHeaderPage(f *os.File) error {
	buf, err := v.Header.encode()
	if err != nil {
		return err
	}
	page := make([]byte, PageSize)
	copy(page, buf)
	_, err = f.WriteAt(page, 0)
	return err
}

// encode packs the header into a fixed big-endian binary layout. It is
// intentionally independent of Go's
// struct memory layout so the on-disk format doesn't shift under a Go
// version or GOARCH change.
func (h *VolumeHeader) encode() ([]byte, error) {
	buf := make([]byte, 0, 128)
	put32 := func(v int32) { buf = binary.BigEndian.AppendUint32(buf, uint32(v)) }
	put64 := func(v int64) { buf = binary.BigEndian.AppendUint64(buf, uint64(v)) }

	buf = append(buf, h.Magic[:]...)
	put32(h.Volid)
	put32(int32(h.Purpose))
	put32(h.SectNpgs)
	put32(h.TotalSects)
	put32(h.TotalPages)
	put32(h.MaxNpages)
	put32(h.SectAlloctbPage1)
	put32(h.SectAlloctbNpages)
	put32(h.PageAlloctbPage1)
	put32(h.PageAlloctbNpages)
	put32(h.SysLastpage)
	put32(h.FreePages)
	put32(h.FreeSects)
	put32(h.HintAllocsect)
	put32(h.UsedDataNpages)
	put32(h.UsedIndexNpages)
	put32(h.UsedTempNpages)
	put32(h.ExtendNpages)
	put32(h.WriteRateCap)
	put64(h.Chkpt.Pageid)
	put32(h.Chkpt.Offset)
	return buf, nil
}

// decodeHeader is encode's inverse, used when opening an existing volume.
func decodeHeader(buf []byte) (*VolumeHeader, error) {
	const minLen = 16 + 19*4 + 8 + 4
	if len(buf) < minLen {
		return nil, fmt.Errorf("%w: header truncated (%d bytes)", ErrInvariant, len(buf))
	}
	h := &VolumeHeader{}
	copy(h.Magic[:], buf[:16])
	buf = buf[16:]
	get32 := func() int32 {
		v := int32(binary.BigEndian.Uint32(buf))
		buf = buf[4:]
		return v
	}
	get64 := func() int64 {
		v := int64(binary.BigEndian.Uint64(buf))
		buf = buf[8:]
		return v
	}
	h.Volid = get32()
	h.Purpose = Purpose(get32())
	h.SectNpgs = get32()
	h.TotalSects = get32()
	h.TotalPages = get32()
	h.MaxNpages = get32()
	h.SectAlloctbPage1 = get32()
	h.SectAlloctbNpages = get32()
	h.PageAlloctbPage1 = get32()
	h.PageAlloctbNpages = get32()
	h.SysLastpage = get32()
	h.FreePages = get32()
	h.FreeSects = get32()
	h.HintAllocsect = get32()
	h.UsedDataNpages = get32()
	h.UsedIndexNpages = get32()
	h.UsedTempNpages = get32()
	h.ExtendNpages = get32()
	h.WriteRateCap = get32()
	h.Chkpt.Pageid = get64()
	h.Chkpt.Offset = get32()
	if h.MagicString() != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvariant, h.MagicString())
	}
	return h, nil
}

// Open reads an existing volume's header page and reconstructs its bitmaps
// by re-deriving them from the header's bookkeeping. A real system would
// read the SAT/PAT pages back through the buffer pool; since this module
// treats bitmaps as process-local state reconstructed on attach, Open
// re-marks only the bits it can prove are allocated (the system range) and
// leaves the rest to the caller's subsequent operations — callers that need
// exact bitmap fidelity across a restart should persist and reload the
// bitmap pages themselves via the buffer pool, which is out of scope here.
func Open(path string, appender logstub.Appender) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrFormatIO, path, err)
	}
	defer f.Close()

	page := make([]byte, PageSize)
	if _, err := f.ReadAt(page, 0); err != nil {
		return nil, fmt.Errorf("%w: read header of %q: %v", ErrMediaRecovery, path, err)
	}
	h, err := decodeHeader(page)
	if err != nil {
		return nil, err
	}
	v := newVolume(path, h, appender)
	sysPages := int(h.SysLastpage) + 1
	v.PAT.SetRange(0, sysPages)
	sysSects := int(ceilDiv(int32(sysPages), SectNpgs))
	v.SAT.SetRange(0, sysSects)
	return v, nil
}
