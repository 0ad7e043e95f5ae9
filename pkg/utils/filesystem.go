// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package utils provides small filesystem helpers shared by the bootstrap,
// journal, and logging packages.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureParentDir creates the directory containing path (if any) with
// os.MkdirAll, per SPEC_FULL.md §4.8/§4.13: "the log directory... is
// created with os.MkdirAll before the first write", applied uniformly to
// the journal, the recorded-logs file, the trace file, and the default
// config path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("utils: create directory %q: %w", dir, err)
	}
	return nil
}
