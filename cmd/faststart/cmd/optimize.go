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
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	faststart "github.com/mycophonic/faststart"
	"github.com/mycophonic/faststart/internal/config"
	"github.com/mycophonic/faststart/internal/storage"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize <input> <output>",
	Short: "Rewrite input as a fast-start MP4 at output",
	Args:  cobra.ExactArgs(2),
	RunE:  runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, args []string) error {
	inputPath, outputPath := args[0], args[1]

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	src, err := storage.OpenLocalSource(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer src.Close()

	sink, err := storage.CreateLocalSink(outputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}

	opts := faststart.Options{
		MoovCapBytes: cfg.Optimize.MoovCapBytes,
		ChunkSize:    cfg.Optimize.ChunkSize,
	}

	listener := faststart.ListenerFuncs(
		func(fraction float32) {
			slog.Debug("progress", "fraction", fraction)
		},
		nil,
		nil,
	)

	if err := faststart.Optimize(context.Background(), src, sink, opts, listener); err != nil {
		sink.Discard()

		return fmt.Errorf("optimizing %s: %w", inputPath, err)
	}

	if err := sink.Commit(); err != nil {
		return fmt.Errorf("committing output: %w", err)
	}

	slog.Info("optimized", "input", inputPath, "output", outputPath)

	return nil
}
