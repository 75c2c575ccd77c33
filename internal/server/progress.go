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

import "sync"

// progressFrame is what every attached WebSocket connection receives,
// mirroring faststart.ProgressListener's three callbacks as one struct.
type progressFrame struct {
	Fraction float32 `json:"fraction"`
	Done     bool    `json:"done"`
	Error    string  `json:"error,omitempty"`
}

// progressMonitor is a faststart.ProgressListener that remembers the
// latest frame and fans every update out to whatever subscribers are
// currently attached, so a WebSocket client connecting mid-job still gets
// the current state immediately and every update after.
type progressMonitor struct {
	mu          sync.Mutex
	latest      progressFrame
	subscribers map[chan progressFrame]struct{}
}

func newProgressMonitor() *progressMonitor {
	return &progressMonitor{subscribers: make(map[chan progressFrame]struct{})}
}

// subscribe registers ch to receive every future frame plus the current
// one immediately. The caller must eventually call unsubscribe.
func (m *progressMonitor) subscribe(ch chan progressFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribers[ch] = struct{}{}

	select {
	case ch <- m.latest:
	default:
	}
}

func (m *progressMonitor) unsubscribe(ch chan progressFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.subscribers, ch)
}

func (m *progressMonitor) broadcast(frame progressFrame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest = frame

	for ch := range m.subscribers {
		select {
		case ch <- frame:
		default:
			// Slow subscriber: drop the frame rather than block the job.
		}
	}
}

func (m *progressMonitor) OnProgress(fraction float32) {
	m.broadcast(progressFrame{Fraction: fraction})
}

func (m *progressMonitor) OnSuccess(string) {
	m.broadcast(progressFrame{Fraction: 1, Done: true})
}

func (m *progressMonitor) OnError(err error) {
	m.broadcast(progressFrame{Done: true, Error: err.Error()})
}
