package envelope

import "strconv"

// pathStep is one descent step while walking a structural value: either a
// mapping-key lookup or a sequence-index lookup.
type pathStep struct {
	key     string
	index   int
	isIndex bool
}

// path locates a payload marker inside the structural value being walked.
type path []pathStep

func (p path) withKey(k string) path {
	next := make(path, len(p), len(p)+1)
	copy(next, p)
	return append(next, pathStep{key: k})
}

func (p path) withIndex(i int) path {
	next := make(path, len(p), len(p)+1)
	copy(next, p)
	return append(next, pathStep{index: i, isIndex: true})
}

// String renders a path for diagnostics, e.g. ".outer[2].k".
func (p path) String() string {
	if len(p) == 0 {
		return "."
	}
	s := ""
	for _, step := range p {
		if step.isIndex {
			s += "[" + strconv.Itoa(step.index) + "]"
		} else {
			s += "." + step.key
		}
	}
	return s
}

// set descends root along p and writes value into the located slot. root
// must be the same map[string]any or []any instance the path was collected
// against; intermediate containers must still be map[string]any or []any.
func (p path) set(root any, value any) bool {
	if len(p) == 0 {
		return false // caller handles the root-is-marker case itself
	}
	cur := root
	for _, step := range p[:len(p)-1] {
		if step.isIndex {
			seq, ok := cur.([]any)
			if !ok || step.index < 0 || step.index >= len(seq) {
				return false
			}
			cur = seq[step.index]
		} else {
			m, ok := cur.(map[string]any)
			if !ok {
				return false
			}
			cur = m[step.key]
		}
	}
	last := p[len(p)-1]
	if last.isIndex {
		seq, ok := cur.([]any)
		if !ok || last.index < 0 || last.index >= len(seq) {
			return false
		}
		seq[last.index] = value
		return true
	}
	m, ok := cur.(map[string]any)
	if !ok {
		return false
	}
	m[last.key] = value
	return true
}
