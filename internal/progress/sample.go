package progress

// Sample is the accumulated progress state of one streaming stage. Fields
// keep their last observed value; a line that lacks a field never clears it.
type Sample struct {
	FilesDone  int64
	FilesTotal int64
	BytesDone  int64
	Percent    int
	Throughput string
	Part       int
	Parts      int

	seen field
}

type field uint8

const (
	fieldFiles field = 1 << iota
	fieldBytes
	fieldPercent
	fieldThroughput
	fieldPart
)

// HasFiles reports whether a file counter has been observed.
func (s Sample) HasFiles() bool { return s.seen&fieldFiles != 0 }

// HasBytes reports whether a transferred-bytes figure has been observed.
func (s Sample) HasBytes() bool { return s.seen&fieldBytes != 0 }

// HasPercent reports whether a percentage has been observed.
func (s Sample) HasPercent() bool { return s.seen&fieldPercent != 0 }

// HasThroughput reports whether a throughput figure has been observed.
func (s Sample) HasThroughput() bool { return s.seen&fieldThroughput != 0 }

// HasPart reports whether a "part m of n" counter has been observed.
func (s Sample) HasPart() bool { return s.seen&fieldPart != 0 }

func (s *Sample) setFiles(done, total int64) {
	s.FilesDone, s.FilesTotal = done, total
	s.seen |= fieldFiles
}

func (s *Sample) setBytes(n int64) {
	s.BytesDone = n
	s.seen |= fieldBytes
}

func (s *Sample) setPercent(p int) {
	s.Percent = p
	s.seen |= fieldPercent
}

func (s *Sample) setThroughput(r string) {
	s.Throughput = r
	s.seen |= fieldThroughput
}

func (s *Sample) setPart(part, parts int) {
	s.Part, s.Parts = part, parts
	s.seen |= fieldPart
}
