/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	faststart "github.com/mycophonic/faststart"
	"github.com/mycophonic/faststart/internal/storage"
)

var checkCmd = &cobra.Command{
	Use:   "check <input>",
	Short: "Report whether input is already fast-start, without rewriting it",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	src, err := storage.OpenLocalSource(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer src.Close()

	optimized, err := faststart.IsOptimized(src)
	if err != nil {
		return fmt.Errorf("checking %s: %w", inputPath, err)
	}

	if optimized {
		fmt.Printf("%s is already fast-start\n", inputPath)
	} else {
		fmt.Printf("%s is not fast-start\n", inputPath)
	}

	return nil
}
