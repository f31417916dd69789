package barcode

// MaxPayload is the longest payload a frame may carry.
const MaxPayload = 32

// symbolBuf holds decoded characters including both sentinels. Appends past
// capacity are refused.
type symbolBuf struct {
	b [MaxPayload + 2]byte
	n int
}

func (s *symbolBuf) append(c byte) bool {
	if s.n >= len(s.b) {
		return false
	}
	s.b[s.n] = c
	s.n++
	return true
}

func (s *symbolBuf) full() bool { return s.n >= len(s.b) }

func (s *symbolBuf) String() string { return string(s.b[:s.n]) }
