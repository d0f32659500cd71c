/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"os"

	"novelist/internal/crash"
)

func main() {
	a := &app{}
	code := run(a, os.Args[1:])
	a.close()
	if code != 0 {
		os.Exit(code)
	}
}

// run is split from main so the deferred crash handler sees the app.
func run(a *app, args []string) int {
	defer crash.Recover(a, "")
	root := newRootCommand(a)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if _, ferr := fmt.Fprintf(os.Stderr, "novelist: %v\n", err); ferr != nil {
			panic(fmt.Errorf("failed to output an error: %w. Reason: %w", err, ferr))
		}
		return 1
	}
	return 0
}
