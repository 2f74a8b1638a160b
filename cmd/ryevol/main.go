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

// Command ryevol is an operator tool for Rye data volumes: it formats
// volumes from a config file, inspects a single volume's header, checks
// invariants, and exercises a sector/page allocation without a running
// server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/ryedb/ryecore/internal/config"
	"github.com/ryedb/ryecore/internal/diskalloc"
	"github.com/ryedb/ryecore/internal/diskvol"
	"github.com/ryedb/ryecore/internal/logstub"
	"github.com/ryedb/ryecore/internal/obs"
)

var (
	app        = kingpin.New("ryevol", "Operator CLI for Rye data volumes.")
	debug      = app.Flag("debug", "Enable debug logging.").Bool()
	configPath = app.Flag("config", "Path to the volume/evaluator/cache YAML config.").Required().String()

	formatCmd = app.Command("format", "Format every volume listed in the config.")

	inspectCmd   = app.Command("inspect", "Open one volume and dump its header.")
	inspectVolid = inspectCmd.Arg("volid", "Volume id to open and dump.").Required().Int32()

	checkCmd = app.Command("check", "Open every configured volume and check its invariants.")

	allocCmd    = app.Command("alloc", "Allocate a sector and npages pages from one volume.")
	allocVolid  = allocCmd.Arg("volid", "Volume id to allocate from.").Required().Int32()
	allocNpages = allocCmd.Arg("npages", "Number of pages to allocate from the chosen sector.").Required().Int32()
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	log, err := obs.New(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ryevol: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("load config", "error", err)
	}

	mgr := diskvol.NewManager(log)
	ctx := context.Background()
	nop := func(int32) logstub.Appender { return logstub.NopAppender{} }

	var runErr error
	switch cmd {
	case formatCmd.FullCommand():
		runErr = errors.Wrap(mgr.FormatAll(ctx, cfg, nop), "format volumes")

	case inspectCmd.FullCommand():
		runErr = runInspect(ctx, mgr, cfg, nop, *inspectVolid)

	case checkCmd.FullCommand():
		runErr = runCheck(ctx, mgr, cfg, nop)

	case allocCmd.FullCommand():
		runErr = runAlloc(ctx, mgr, cfg, nop, *allocVolid, *allocNpages)
	}

	if runErr != nil {
		log.Fatalw("command failed", "command", cmd, "error", runErr)
	}
}

func runInspect(ctx context.Context, mgr *diskvol.Manager, cfg *config.Config, nop func(int32) logstub.Appender, volid int32) error {
	if err := mgr.OpenAll(ctx, cfg, nop); err != nil {
		return errors.Wrap(err, "open volumes")
	}
	v, ok := mgr.Get(volid)
	if !ok {
		return errors.Errorf("volume %d not found in config", volid)
	}
	v.RLock()
	defer v.RUnlock()
	return errors.Wrapf(diskvol.DumpHeader(os.Stdout, &v.Header), "dump header for volume %d", volid)
}

func runCheck(ctx context.Context, mgr *diskvol.Manager, cfg *config.Config, nop func(int32) logstub.Appender) error {
	if err := mgr.OpenAll(ctx, cfg, nop); err != nil {
		return errors.Wrap(err, "open volumes")
	}
	if err := mgr.CheckAllInvariants(); err != nil {
		return errors.Wrap(err, "invariant check")
	}
	fmt.Println("all volume invariants hold")
	return nil
}

func runAlloc(ctx context.Context, mgr *diskvol.Manager, cfg *config.Config, nop func(int32) logstub.Appender, volid, npages int32) error {
	if err := mgr.OpenAll(ctx, cfg, nop); err != nil {
		return errors.Wrap(err, "open volumes")
	}
	v, ok := mgr.Get(volid)
	if !ok {
		return errors.Errorf("volume %d not found in config", volid)
	}

	sectid, err := diskalloc.AllocSector(ctx, v, 1, npages, diskalloc.NopCacheUpdater{})
	if err != nil {
		return errors.Wrapf(err, "allocate sector on volume %d", volid)
	}
	result, err := diskalloc.AllocPage(ctx, v, sectid, npages, -1, logstub.PageTypeData, diskalloc.NopCacheUpdater{}, cfg.Cache.GenericPreallocThresholdPages, nil)
	if err != nil {
		return errors.Wrapf(err, "allocate %d pages from sector %d", npages, sectid)
	}
	if result.NoRangeInSector {
		return errors.Errorf("sector %d has no contiguous run of %d pages, though the volume has space", sectid, npages)
	}

	info, err := diskalloc.PurposeAndSpaceInfo(v)
	if err != nil {
		return errors.Wrapf(err, "space info for volume %d", volid)
	}
	fmt.Printf("allocated sector %d, %d pages starting at page %d\n", sectid, npages, result.Pageid)
	fmt.Printf("volume %d: purpose=%s total=%d free=%d max=%d used_data=%d used_index=%d used_temp=%d\n",
		volid, info.Purpose, info.Total, info.Free, info.Max, info.UsedData, info.UsedIndex, info.UsedTemp)
	return nil
}
