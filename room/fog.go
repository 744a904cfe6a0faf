package room

// fogSet keeps revealed cells in reveal order without duplicates.
type fogSet struct {
	cells []string
	index map[string]struct{}
}

func newFogSet(cells []string) fogSet {
	f := fogSet{index: make(map[string]struct{}, len(cells))}
	f.reveal(cells)
	return f
}

// reveal returns how many cells were new.
func (f *fogSet) reveal(cells []string) int {
	added := 0
	for _, c := range cells {
		if _, ok := f.index[c]; ok {
			continue
		}
		f.index[c] = struct{}{}
		f.cells = append(f.cells, c)
		added++
	}
	return added
}

func (f *fogSet) reset() {
	f.cells = nil
	f.index = make(map[string]struct{})
}

func (f *fogSet) list() []string {
	out := make([]string, len(f.cells))
	copy(out, f.cells)
	return out
}

func (f *fogSet) len() int {
	return len(f.cells)
}
