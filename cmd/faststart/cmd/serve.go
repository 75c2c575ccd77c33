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
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	faststart "github.com/mycophonic/faststart"
	"github.com/mycophonic/faststart/internal/config"
	"github.com/mycophonic/faststart/internal/server"
	"github.com/mycophonic/faststart/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP + WebSocket job submission server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var s3Client *s3.Client

	if cfg.Server.S3Bucket != "" {
		s3Client, err = storage.NewS3Client(context.Background())
		if err != nil {
			return fmt.Errorf("initializing S3 client: %w", err)
		}
	}

	opts := faststart.Options{
		MoovCapBytes: cfg.Optimize.MoovCapBytes,
		ChunkSize:    cfg.Optimize.ChunkSize,
	}

	srv := server.New(s3Client, opts, slog.Default())

	slog.Info("starting server", "addr", cfg.Server.Addr)

	return http.ListenAndServe(cfg.Server.Addr, srv.Handler())
}
