package view

// Stack is the ordered list of open views, top last. Views are also
// indexed by ID so background results can find their owner wherever it
// sits in the stack.
type Stack struct {
	views []*View
	byID  map[ID]*View
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{byID: make(map[ID]*View)}
}

// Len returns the number of views.
func (s *Stack) Len() int { return len(s.views) }

// Push adds v on top.
func (s *Stack) Push(v *View) {
	s.views = append(s.views, v)
	s.byID[v.ID] = v
}

// Pop removes and returns the top view, or nil when the stack is empty.
// Whether popping the last view is allowed is the caller's decision.
func (s *Stack) Pop() *View {
	if len(s.views) == 0 {
		return nil
	}
	v := s.views[len(s.views)-1]
	s.views[len(s.views)-1] = nil
	s.views = s.views[:len(s.views)-1]
	delete(s.byID, v.ID)
	return v
}

// Top returns the top view, or nil.
func (s *Stack) Top() *View {
	if len(s.views) == 0 {
		return nil
	}
	return s.views[len(s.views)-1]
}

// Swap exchanges the top two views. It reports false with fewer than two.
func (s *Stack) Swap() bool {
	n := len(s.views)
	if n < 2 {
		return false
	}
	s.views[n-1], s.views[n-2] = s.views[n-2], s.views[n-1]
	return true
}

// Dup pushes a clone of the top view with a fresh ID and returns it.
func (s *Stack) Dup() *View {
	top := s.Top()
	if top == nil {
		return nil
	}
	c := top.Clone()
	s.Push(c)
	return c
}

// Find returns the view with id, or nil if it has been popped.
func (s *Stack) Find(id ID) *View {
	return s.byID[id]
}

// Parent resolves v's parent through the stack.
func (s *Stack) Parent(v *View) *View {
	if v == nil || v.Parent == nil {
		return nil
	}
	return s.Find(v.Parent.ID)
}

// Names returns the view names bottom to top.
func (s *Stack) Names() []string {
	names := make([]string, len(s.views))
	for i, v := range s.views {
		names[i] = v.Name
	}
	return names
}

// Views returns the views bottom to top. The slice must not be modified.
func (s *Stack) Views() []*View { return s.views }
