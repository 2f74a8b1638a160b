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

package planrestore

import (
	"fmt"
	"io"
)

// Dump writes a human-readable, indented rendering of a restored plan
// graph, the planrestore analogue of diskvol.DumpHeader, surfaced through
// `ryeplandump`. It tracks already-printed nodes by pointer so a shared
// sub-tree (the same offset resolved twice during restore) is printed once
// and referenced by a "(see above)" marker on repeat visits, rather than
// looping forever or printing it twice.
func Dump(w io.Writer, root *XASLNode) error {
	seen := make(map[*XASLNode]bool)
	return dumpNode(w, root, 0, seen)
}

func dumpNode(w io.Writer, n *XASLNode, depth int, seen map[*XASLNode]bool) error {
	indent := fmt.Sprintf("%*s", depth*2, "")
	if n == nil {
		_, err := fmt.Fprintf(w, "%snil\n", indent)
		return err
	}
	if seen[n] {
		_, err := fmt.Fprintf(w, "%sxasl_node %p (see above)\n", indent, n)
		return err
	}
	seen[n] = true

	if _, err := fmt.Fprintf(w, "%sxasl_node %p status=%d proc_type=%d\n", indent, n, n.Status, n.ProcType); err != nil {
		return err
	}
	if n.Where != nil {
		if _, err := fmt.Fprintf(w, "%s  where: predicate tree present\n", indent); err != nil {
			return err
		}
	}
	if n.OutList != nil {
		if _, err := fmt.Fprintf(w, "%s  out_list: %d regu-variables\n", indent, len(n.OutList.Vars)); err != nil {
			return err
		}
	}
	switch n.ProcType {
	case ProcUnion:
		if n.Union != nil {
			if _, err := fmt.Fprintf(w, "%s  union op=%d\n", indent, n.Union.Op); err != nil {
				return err
			}
			if err := dumpNode(w, n.Union.Left, depth+1, seen); err != nil {
				return err
			}
			if err := dumpNode(w, n.Union.Right, depth+1, seen); err != nil {
				return err
			}
		}
	case ProcBuildlist:
		if _, err := fmt.Fprintf(w, "%s  buildlist\n", indent); err != nil {
			return err
		}
	case ProcBuildvalue:
		if _, err := fmt.Fprintf(w, "%s  buildvalue\n", indent); err != nil {
			return err
		}
	case ProcUpdate:
		if n.Update != nil {
			if _, err := fmt.Fprintf(w, "%s  update class_oid=%d attrs=%d\n", indent, n.Update.ClassOID, len(n.Update.AttrIDs)); err != nil {
				return err
			}
		}
	case ProcDelete:
		if n.Delete != nil {
			if _, err := fmt.Fprintf(w, "%s  delete class_oid=%d\n", indent, n.Delete.ClassOID); err != nil {
				return err
			}
		}
	case ProcInsert:
		if n.Insert != nil {
			if _, err := fmt.Fprintf(w, "%s  insert class_oid=%d values=%d\n", indent, n.Insert.ClassOID, len(n.Insert.Values)); err != nil {
				return err
			}
		}
	}
	if n.Dptr != nil {
		if _, err := fmt.Fprintf(w, "%s  dptr ->\n", indent); err != nil {
			return err
		}
		return dumpNode(w, n.Dptr, depth+1, seen)
	}
	return nil
}
