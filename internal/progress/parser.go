package progress

import (
	"bufio"
	"fmt"
	"io"
)

const maxLineSize = 1 << 20

// Parser consumes a subprocess output stream, tees it unmodified into a log
// and forwards composed status messages to a callback.
type Parser struct {
	extractor Extractor
	onUpdate  func(string)
	sample    Sample
}

// NewParser returns a Parser that reports through onUpdate. onUpdate may be nil.
func NewParser(ex Extractor, onUpdate func(string)) *Parser {
	return &Parser{extractor: ex, onUpdate: onUpdate}
}

// Feed processes a single normalized line.
func (p *Parser) Feed(line string) {
	if !p.extractor.Extract(line, &p.sample) {
		return
	}
	if p.onUpdate != nil {
		p.onUpdate(p.extractor.Status(p.sample))
	}
}

// Sample returns the accumulated progress state.
func (p *Parser) Sample() Sample {
	return p.sample
}

// Consume reads r until EOF, writing every byte to log. A scan error (for
// example an oversized line) stops parsing but r is still drained into log
// so the producer never blocks on a full pipe.
func (p *Parser) Consume(r io.Reader, log io.Writer) error {
	tee := io.TeeReader(r, log)
	scanner := bufio.NewScanner(tee)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(ScanLines)
	for scanner.Scan() {
		p.Feed(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, tee) //nolint:errcheck // best-effort drain
		return fmt.Errorf("scan progress: %w", err)
	}
	return nil
}
