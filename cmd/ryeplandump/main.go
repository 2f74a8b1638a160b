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

// Command ryeplandump restores a serialized query-execution-plan byte
// stream captured from a running process and dumps the
// resulting pointer graph, for debugging a plan the optimizer produced
// without attaching a live server.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/ryedb/ryecore/internal/planrestore"
)

var (
	app      = kingpin.New("ryeplandump", "Restore and dump a serialized Rye query plan stream.")
	streamIn = app.Arg("stream", "Path to a captured plan stream file.").Required().String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := run(*streamIn); err != nil {
		fmt.Fprintf(os.Stderr, "ryeplandump: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read plan stream %q", path)
	}

	root, header, err := planrestore.Restore(raw)
	if err != nil {
		return errors.Wrap(err, "restore plan stream")
	}

	fmt.Printf("header: version=%d dbval_count=%d creator_oid=%d classes=%d\n",
		header.Version, header.DBValCount, header.CreatorOID, len(header.ClassOIDs))
	for i, oid := range header.ClassOIDs {
		card := int64(-1)
		if i < len(header.Cardinality) {
			card = header.Cardinality[i]
		}
		fmt.Printf("  class[%d] oid=%d cardinality=%d\n", i, oid, card)
	}

	return errors.Wrap(planrestore.Dump(os.Stdout, root), "dump restored plan")
}
