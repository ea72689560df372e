package span

import "iter"

// All yields the sub-spans of s in order. Each call starts from the first
// sub-span; nothing is shared between iterations.
func (s Span) All() iter.Seq[Span] {
	return func(yield func(Span) bool) {
		g, ok := s.grid()
		if !ok {
			return
		}
		for i := 0; i < g.n; i++ {
			sub, err := s.sub(g, i)
			if err != nil || !yield(sub) {
				return
			}
		}
	}
}

// Indexed yields sub-spans together with their index.
func (s Span) Indexed() iter.Seq2[int, Span] {
	return func(yield func(int, Span) bool) {
		i := 0
		for sub := range s.All() {
			if !yield(i, sub) {
				return
			}
			i++
		}
	}
}
