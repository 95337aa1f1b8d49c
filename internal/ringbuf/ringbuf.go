package ringbuf

// RingBuf holds the most recent n values pushed into it.
type RingBuf[T any] struct {
	buf        []T
	head, tail int
}

func New[T any](n int) RingBuf[T] {
	return RingBuf[T]{buf: make([]T, n)}
}

// PushBack appends val, evicting the oldest value if the buffer is full.
func (rb *RingBuf[T]) PushBack(val T) {
	if len(rb.buf) == 0 {
		return
	}
	if rb.Len() == len(rb.buf) {
		rb.head++
	}
	rb.buf[rb.tail%len(rb.buf)] = val
	rb.tail++
}

// At returns the i-th oldest value
func (rb *RingBuf[T]) At(i int) T {
	if i < 0 || i >= rb.Len() {
		panic(i)
	}
	return rb.buf[(rb.head+i)%len(rb.buf)]
}

func (rb *RingBuf[T]) Len() int {
	return rb.tail - rb.head
}

// Slice appends the values, oldest first, to out.
func (rb *RingBuf[T]) Slice(out []T) []T {
	for i := 0; i < rb.Len(); i++ {
		out = append(out, rb.At(i))
	}
	return out
}
