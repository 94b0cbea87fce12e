// Package profiling records daemon startup phases and optional pprof
// profiles for `homed serve`.
package profiling

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Phase is one timed step of startup.
type Phase struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Recorder times startup phases and writes CPU and heap profiles when the
// corresponding flags are set.
type Recorder struct {
	cpuPath string
	memPath string
	timing  bool

	mu      sync.Mutex
	start   time.Time
	phases  []Phase
	cpuFile *os.File
	now     func() time.Time
}

// New returns a Recorder with no profiling enabled.
func New() *Recorder {
	return &Recorder{now: time.Now}
}

// AddFlags registers --cpu-profile, --mem-profile and --timing on cmd.
func (r *Recorder) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.cpuPath, "cpu-profile", "", "Write a CPU profile covering the daemon's lifetime")
	cmd.Flags().StringVar(&r.memPath, "mem-profile", "", "Write a heap profile on shutdown")
	cmd.Flags().BoolVar(&r.timing, "timing", false, "Log how long each startup phase took")
}

// Begin marks the start of startup and starts CPU profiling if requested.
func (r *Recorder) Begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = r.now()
	r.phases = nil

	if r.cpuPath == "" {
		return nil
	}
	f, err := os.Create(r.cpuPath)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	r.cpuFile = f
	return nil
}

// Phase starts timing a named phase. Call the returned func when it ends.
func (r *Recorder) Phase(name string) func() {
	started := r.now()
	return func() {
		d := r.now().Sub(started)
		r.mu.Lock()
		r.phases = append(r.phases, Phase{Name: name, Duration: d})
		r.mu.Unlock()
	}
}

// Phases returns the completed phases in completion order.
func (r *Recorder) Phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Phase, len(r.phases))
	copy(out, r.phases)
	return out
}

// Report logs each phase at info level when --timing is set.
func (r *Recorder) Report(logger *logrus.Entry) {
	if !r.timing {
		return
	}
	r.mu.Lock()
	total := r.now().Sub(r.start)
	phases := make([]Phase, len(r.phases))
	copy(phases, r.phases)
	r.mu.Unlock()

	for _, p := range phases {
		logger.WithFields(logrus.Fields{
			"phase":    p.Name,
			"duration": p.Duration.Round(100 * time.Microsecond).String(),
		}).Info("Startup phase")
	}
	logger.WithField("duration", total.Round(100*time.Microsecond).String()).Info("Startup complete")
}

// End stops CPU profiling and writes the heap profile. Paths of the files
// written are printed to w.
func (r *Recorder) End(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cpuFile != nil {
		pprof.StopCPUProfile()
		r.cpuFile.Close()
		r.cpuFile = nil
		fmt.Fprintf(w, "CPU profile written to %s\n", r.cpuPath)
	}

	if r.memPath == "" {
		return nil
	}
	f, err := os.Create(r.memPath)
	if err != nil {
		return fmt.Errorf("could not create memory profile: %w", err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("could not write memory profile: %w", err)
	}
	fmt.Fprintf(w, "Memory profile written to %s\n", r.memPath)
	return nil
}
