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

// Package server exposes faststart.Job over HTTP: POST /jobs submits an
// optimization, GET /ws streams its progress, DELETE /jobs/{id} cancels
// it. It is a thin caller of the root package, not a UI.
package server

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	faststart "github.com/mycophonic/faststart"
)

// trackedJob pairs a running Job with a broadcaster that fans its
// progress out to any number of attached WebSocket connections.
type trackedJob struct {
	job     *faststart.Job
	monitor *progressMonitor
}

// registry holds every job this process knows about, keyed by ID.
// Entries are never removed automatically; a production deployment would
// age them out, but that policy belongs to the caller, not this package.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]*trackedJob
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*trackedJob)}
}

func (r *registry) add(job *faststart.Job, monitor *progressMonitor) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.jobs[id] = &trackedJob{job: job, monitor: monitor}
	r.mu.Unlock()

	return id
}

func (r *registry) get(id string) (*trackedJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tj, ok := r.jobs[id]

	return tj, ok
}

var errUnknownJob = fmt.Errorf("server: unknown job id")
