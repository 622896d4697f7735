// ABOUTME: Cancellable line reader for the interactive chat loop
// ABOUTME: Reads stdin on a goroutine so a prompt can be abandoned on cancel

package cli

import (
	"bufio"
	"context"
	"io"
)

// maxInputLine bounds a single prompt line.
const maxInputLine = 1024 * 1024

type lineResult struct {
	line string
	err  error
}

// lineReader yields lines from r one at a time.
type lineReader struct {
	scanner *bufio.Scanner
	pending chan lineResult
}

func newLineReader(r io.Reader) *lineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxInputLine)
	return &lineReader{scanner: scanner}
}

// ReadLine returns the next line, io.EOF when input ends, or ctx.Err() when
// ctx is cancelled first. A read abandoned by cancellation is picked up by the
// next call.
func (lr *lineReader) ReadLine(ctx context.Context) (string, error) {
	if lr.pending == nil {
		ch := make(chan lineResult, 1)
		lr.pending = ch
		go func() {
			if lr.scanner.Scan() {
				ch <- lineResult{line: lr.scanner.Text()}
				return
			}
			err := lr.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			ch <- lineResult{err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-lr.pending:
		lr.pending = nil
		return res.line, res.err
	}
}
