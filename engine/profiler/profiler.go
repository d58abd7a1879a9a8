//go:build profile

// Package profiler records nested scopes (one per frame step) into a ring
// buffer and dumps them as a speedscope evented profile.
package profiler

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Init must be called once before any scope is recorded. capacity is the
// number of open/close events kept; older ones are overwritten.
func Init(capacity int) {
	if capacity <= 0 {
		capacity = 1 << 20
	}
	ring.init(capacity)
}

func Enabled() bool { return ring.ready.Load() }

// Start opens a scope and returns the func that closes it.
//
//	defer profiler.Start("frame.update")()
func Start(name string) func() {
	if !ring.ready.Load() {
		return func() {}
	}
	id := intern(name)
	start := time.Now().UnixNano()
	ring.push(event{atNS: start, frame: id, open: true})
	return func() {
		end := time.Now().UnixNano()
		if end < start {
			end = start
		}
		ring.push(event{atNS: end, frame: id})
	}
}

// Dump writes every recorded scope to path as a speedscope file.
func Dump(path string) error {
	evs := ring.snapshot()
	if len(evs) == 0 {
		return errors.New("profiler: no events to dump")
	}
	return writeSpeedscope(evs, path)
}

// ---------- event ring ----------

type event struct {
	atNS  int64
	frame int
	open  bool
}

type eventRing struct {
	ready atomic.Bool
	cap   uint64
	write atomic.Uint64
	evs   []event
}

func (r *eventRing) init(capacity int) {
	r.cap = uint64(capacity)
	r.evs = make([]event, r.cap)
	r.write.Store(0)
	r.ready.Store(true)
}

func (r *eventRing) push(e event) {
	i := r.write.Add(1) - 1
	r.evs[i%r.cap] = e
}

// snapshot keeps write order.
func (r *eventRing) snapshot() []event {
	n := r.write.Load()
	if n == 0 {
		return nil
	}
	start := uint64(0)
	if n > r.cap {
		start = n - r.cap
	}
	out := make([]event, 0, n-start)
	for k := start; k < n; k++ {
		out = append(out, r.evs[k%r.cap])
	}
	return out
}

var ring eventRing

// ---------- scope names ----------

var (
	muNames sync.Mutex
	names   []string
	index   = map[string]int{}
)

func intern(name string) int {
	muNames.Lock()
	defer muNames.Unlock()
	if id, ok := index[name]; ok {
		return id
	}
	id := len(names)
	index[name] = id
	names = append(names, name)
	return id
}

// ---------- speedscope ----------

type ssFile struct {
	Schema   string      `json:"$schema"`
	Shared   ssShared    `json:"shared"`
	Profiles []ssProfile `json:"profiles"`
	Exporter string      `json:"exporter,omitempty"`
	Name     string      `json:"name,omitempty"`
}

type ssShared struct {
	Frames []ssFrame `json:"frames"`
}

type ssFrame struct {
	Name string `json:"name"`
}

type ssProfile struct {
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Unit       string    `json:"unit"`
	StartValue int64     `json:"startValue"`
	EndValue   int64     `json:"endValue"`
	Events     []ssEvent `json:"events"`
}

type ssEvent struct {
	Type  string `json:"type"` // "O" or "C"
	At    int64  `json:"at"`   // µs since the first event
	Frame int    `json:"frame"`
}

func buildSpeedscope(evs []event) (*ssFile, error) {
	muNames.Lock()
	frames := make([]ssFrame, len(names))
	for i, n := range names {
		frames[i] = ssFrame{Name: n}
	}
	muNames.Unlock()

	base := evs[0].atNS
	var endUS int64
	lastUS := int64(-1)
	out := make([]ssEvent, 0, len(evs)+16)
	stack := make([]int, 0, 64)

	for _, e := range evs {
		atUS := (e.atNS - base) / 1000
		if atUS < lastUS {
			atUS = lastUS
		}
		if e.open {
			out = append(out, ssEvent{Type: "O", At: atUS, Frame: e.frame})
			stack = append(stack, e.frame)
		} else {
			// A close whose open fell out of the ring.
			if len(stack) == 0 || stack[len(stack)-1] != e.frame {
				continue
			}
			stack = stack[:len(stack)-1]
			out = append(out, ssEvent{Type: "C", At: atUS, Frame: e.frame})
		}
		lastUS = atUS
		endUS = max(endUS, atUS)
	}
	// speedscope needs balanced events.
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, ssEvent{Type: "C", At: lastUS, Frame: stack[i]})
	}
	if len(out) == 0 {
		return nil, errors.New("profiler: no balanced events")
	}

	return &ssFile{
		Schema: "https://www.speedscope.app/file-format-schema.json",
		Shared: ssShared{Frames: frames},
		Profiles: []ssProfile{{
			Type:     "evented",
			Name:     "frames",
			Unit:     "microseconds",
			EndValue: endUS,
			Events:   out,
		}},
		Exporter: "grove-ar-profiler",
		Name:     "grove-ar capture",
	}, nil
}

func writeSpeedscope(evs []event, path string) error {
	doc, err := buildSpeedscope(evs)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "create profile")
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return errors.Wrap(err, "encode profile")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close profile")
	}
	return os.Rename(tmp, path)
}
