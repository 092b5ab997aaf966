package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
)

const (
	// StdinPath selects standard input in a list of log sources.
	StdinPath = "-"

	// StdinName is the Source reported for lines read from standard input.
	StdinName = "<stdin>"

	// MaxLineSize caps the bytes kept from one line. The remainder of a
	// longer line is discarded and reading continues with the next line.
	MaxLineSize = 1024 * 1024
)

// FileSource implements LogSource over a list of files read one after another.
// The path "-" reads standard input.
type FileSource struct {
	files   []string
	cleaner *Cleaner
	stdin   io.Reader

	currentFile    *os.File
	currentReader  *lineReader
	currentSource  string
	currentLine    int
	fileIndex      int
}

// NewFileSource creates a LogSource that reads from the given files.
// A nil cleaner passes lines through unchanged.
func NewFileSource(files []string, cleaner *Cleaner) *FileSource {
	return &FileSource{
		files:     files,
		cleaner:   cleaner,
		fileIndex: -1,
		stdin:     os.Stdin,
	}
}

// WithStdin sets the reader used for the path "-". The default is os.Stdin.
func (s *FileSource) WithStdin(r io.Reader) *FileSource {
	s.stdin = r
	return s
}

// Next returns the next line. Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*LogLine, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.currentReader == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		text, err := s.currentReader.readLine()
		if err == nil {
			s.currentLine++
			return &LogLine{
				Content: s.cleaner.Clean(text),
				Source:  s.currentSource,
				LineNum: s.currentLine,
			}, nil
		}
		if err != io.EOF {
			return nil, fmt.Errorf("reading %s: %w", s.currentSource, err)
		}

		if err := s.closeCurrentFile(); err != nil {
			return nil, err
		}
	}
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	if path == StdinPath {
		s.currentReader = newLineReader(s.stdin)
		s.currentSource = StdinName
		s.currentLine = 0
		return nil
	}

	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", path, err)
	}

	s.currentFile = f
	s.currentReader = newLineReader(f)
	s.currentSource = path
	s.currentLine = 0

	return nil
}

func (s *FileSource) closeCurrentFile() error {
	s.currentReader = nil
	if s.currentFile != nil {
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}

// ReaderSource implements LogSource over an arbitrary reader, such as a pipe
// from a running go test.
type ReaderSource struct {
	name    string
	cleaner *Cleaner
	reader  *lineReader
	closer  io.Closer
	line    int
}

// NewReaderSource reads lines from r. If r is an io.Closer it is closed by Close.
func NewReaderSource(name string, r io.Reader, cleaner *Cleaner) *ReaderSource {
	s := &ReaderSource{
		name:    name,
		cleaner: cleaner,
		reader:  newLineReader(r),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Next returns the next line, or io.EOF at the end of the stream.
func (s *ReaderSource) Next(ctx context.Context) (*LogLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := s.reader.readLine()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.name, err)
	}
	s.line++
	return &LogLine{
		Content: s.cleaner.Clean(text),
		Source:  s.name,
		LineNum: s.line,
	}, nil
}

// Close closes the underlying reader when it is closable.
func (s *ReaderSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// ReadLines drains src and returns the content of every line.
func ReadLines(ctx context.Context, src LogSource) ([]string, error) {
	var lines []string
	for {
		line, err := src.Next(ctx)
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
		lines = append(lines, line.Content)
	}
}

// lineReader splits a stream into lines without "\n" or "\r\n".
// Lines over MaxLineSize are truncated rather than failing the stream.
type lineReader struct {
	r   *bufio.Reader
	buf []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// readLine returns the next line, or io.EOF once the stream is exhausted.
func (lr *lineReader) readLine() (string, error) {
	lr.buf = lr.buf[:0]
	partial := false
	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			if err == io.EOF && partial {
				return string(lr.buf), nil
			}
			return "", err
		}
		if room := MaxLineSize - len(lr.buf); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			lr.buf = append(lr.buf, chunk...)
		}
		if !isPrefix {
			return string(lr.buf), nil
		}
		partial = true
	}
}
