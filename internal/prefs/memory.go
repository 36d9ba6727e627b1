package prefs

// Memory is the default Backend: a plain set, lost on restart.
type Memory struct {
	set map[string]struct{}
}

func NewMemory() *Memory { return &Memory{set: make(map[string]struct{})} }

func (m *Memory) Has(name string) bool {
	_, ok := m.set[name]
	return ok
}

func (m *Memory) Add(name string)    { m.set[name] = struct{}{} }
func (m *Memory) Remove(name string) { delete(m.set, name) }

func (m *Memory) All() []string {
	out := make([]string, 0, len(m.set))
	for k := range m.set {
		out = append(out, k)
	}
	return out
}
