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

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	faststart "github.com/mycophonic/faststart"
	"github.com/mycophonic/faststart/internal/storage"
)

// Server is the HTTP + WebSocket surface around faststart.Job.
type Server struct {
	router   *mux.Router
	registry *registry
	s3Client *s3.Client
	opts     faststart.Options
	logger   *slog.Logger
}

// New builds a Server. s3Client may be nil if no request will name an S3
// bucket; it is lazily required only when a jobRequest sets one.
func New(s3Client *s3.Client, opts faststart.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:   mux.NewRouter(),
		registry: newRegistry(),
		s3Client: s3Client,
		opts:     opts,
		logger:   logger,
	}

	s.router.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	s.router.HandleFunc("/jobs/{id}", s.handleDeleteJob).Methods(http.MethodDelete)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	return s
}

// Handler returns the server's http.Handler, wrapped with CORS support
// the way the retrieved broadcast backend wraps its router.
func (s *Server) Handler() http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete}),
	)(s.router)
}

// jobRequest names one optimization's input and output. A non-empty
// S3Bucket means InputPath/OutputPath are object keys in that bucket
// rather than local filesystem paths.
type jobRequest struct {
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path"`
	S3Bucket   string `json:"s3_bucket,omitempty"`
}

type jobResponse struct {
	ID string `json:"id"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)

		return
	}

	src, sink, err := s.openSourceAndSink(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	monitor := newProgressMonitor()

	job := faststart.StartJob(context.Background(), src, sink, s.opts, monitor)
	id := s.registry.add(job, monitor)

	go s.finalize(id, job, src, sink)

	s.logger.Info("job started", "job_id", id, "input", req.InputPath, "output", req.OutputPath)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(jobResponse{ID: id})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	tj, ok := s.registry.get(id)
	if !ok {
		http.Error(w, errUnknownJob.Error(), http.StatusNotFound)

		return
	}

	tj.job.Cancel()

	s.logger.Info("job cancelled", "job_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// discarder is implemented by sinks holding a local staging file that
// must be cleaned up when the job fails.
type discarder interface {
	Discard()
}

// closer is implemented by sources holding an open file handle (local or
// S3-staged) that must be released once the job is done with it.
type closer interface {
	Close() error
}

// finalize waits for job to reach a terminal state, then commits sink on
// success or discards it on failure, and releases src's handle either
// way. It runs on its own goroutine started alongside the job so the HTTP
// handler never blocks on the optimization itself.
func (s *Server) finalize(id string, job *faststart.Job, src faststart.Source, sink faststart.Sink) {
	<-job.Done()

	if c, ok := src.(closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("closing source failed", "job_id", id, "error", err)
		}
	}

	if err := job.Err(); err != nil {
		s.logger.Error("job failed", "job_id", id, "error", err)

		if d, ok := sink.(discarder); ok {
			d.Discard()
		}

		return
	}

	if c, ok := sink.(sinkCommitter); ok {
		if err := c.Commit(context.Background()); err != nil {
			s.logger.Error("committing job output failed", "job_id", id, "error", err)
		}
	}

	s.logger.Info("job finished", "job_id", id)
}

// sinkCommitter is implemented by sinks that must be finalized after a
// successful write (a rename, an upload); local files and S3 objects
// both need this, an in-memory buffer does not.
type sinkCommitter interface {
	Commit(context.Context) error
}

func (s *Server) openSourceAndSink(ctx context.Context, req jobRequest) (faststart.Source, faststart.Sink, error) {
	if req.S3Bucket == "" {
		src, err := storage.OpenLocalSource(req.InputPath)
		if err != nil {
			return nil, nil, err
		}

		sink, err := storage.CreateLocalSink(req.OutputPath)
		if err != nil {
			return nil, nil, err
		}

		return src, &committingSink{LocalSink: sink}, nil
	}

	if s.s3Client == nil {
		return nil, nil, fmt.Errorf("server: s3_bucket set but no S3 client configured")
	}

	src, err := storage.DownloadS3Source(ctx, s.s3Client, req.S3Bucket, req.InputPath)
	if err != nil {
		return nil, nil, err
	}

	sink, err := storage.CreateS3Sink(s.s3Client, req.S3Bucket, req.OutputPath)
	if err != nil {
		return nil, nil, err
	}

	return src, sink, nil
}

// committingSink adapts storage.LocalSink's explicit Commit/Discard shape
// to the anonymous sinkCommitter interface above, ignoring the context
// parameter that only the S3 variant needs.
type committingSink struct {
	*storage.LocalSink
}

func (c *committingSink) Commit(context.Context) error {
	return c.LocalSink.Commit()
}
