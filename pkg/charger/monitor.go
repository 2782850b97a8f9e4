package charger

// WindowSize is the number of samples the charging flag is debounced over.
const WindowSize = 4

// StatusReader reports the current charger status.
type StatusReader interface {
	Status() (Status, error)
}

// Monitor keeps the last WindowSize charging samples. The station counts as
// charging while any sample in the window is true.
type Monitor struct {
	samples [WindowSize]bool
	next    int
	count   int
}

// NewMonitor returns an empty monitor. An empty window is not charging.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Record pushes a sample, evicting the oldest once the window is full.
func (m *Monitor) Record(charging bool) {
	m.samples[m.next] = charging
	m.next = (m.next + 1) % WindowSize
	if m.count < WindowSize {
		m.count++
	}
}

// Sample reads the charger and records the result. On error the window is
// left untouched.
func (m *Monitor) Sample(r StatusReader) error {
	st, err := r.Status()
	if err != nil {
		return err
	}
	m.Record(st.Charging())
	return nil
}

// IsCharging is the logical OR over the window.
func (m *Monitor) IsCharging() bool {
	for i := 0; i < m.count; i++ {
		if m.samples[i] {
			return true
		}
	}
	return false
}

// Samples returns the window, oldest first.
func (m *Monitor) Samples() []bool {
	out := make([]bool, 0, m.count)
	start := (m.next - m.count + WindowSize) % WindowSize
	for i := 0; i < m.count; i++ {
		out = append(out, m.samples[(start+i)%WindowSize])
	}
	return out
}
