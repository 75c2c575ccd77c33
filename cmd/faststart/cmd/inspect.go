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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mycophonic/faststart/internal/mp4"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Print the full nested box tree of input",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer file.Close()

	nodes, err := mp4.DumpTree(file)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", inputPath, err)
	}

	printNodes(cmd.OutOrStdout(), nodes, 0)

	return nil
}

func printNodes(w interface{ Write([]byte) (int, error) }, nodes []mp4.Node, depth int) {
	indent := strings.Repeat("  ", depth)

	for _, node := range nodes {
		fmt.Fprintf(w, "%s%s offset=%d size=%d\n", indent, node.Type, node.Offset, node.Size)
		printNodes(w, node.Children, depth+1)
	}
}
