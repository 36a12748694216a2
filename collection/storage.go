package collection

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

var ErrStorageClosed = errors.New("storage closed")

var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// JSONStorage appends commands to a file, one JSON document per line. Writes
// are done by a background goroutine and flushed on Sync and Close.
type JSONStorage struct {
	Filename string

	file      *os.File
	buffer    *bufio.Writer
	queue     chan *bytes.Buffer
	flush     chan chan error
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewJSONStorage(filename string) (*JSONStorage, error) {
	s := &JSONStorage{
		Filename: filename,
		queue:    make(chan *bytes.Buffer, 1000),
		flush:    make(chan chan error),
		closed:   make(chan struct{}),
	}

	var err error
	s.file, err = os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("open file for write: %w", err)
	}

	s.buffer = bufio.NewWriterSize(s.file, 1024*1024)

	s.wg.Add(1)
	go s.writerLoop()

	return s, nil
}

func (s *JSONStorage) write(buf *bytes.Buffer) {
	s.buffer.Write(buf.Bytes())
	bufferPool.Put(buf)
}

func (s *JSONStorage) writerLoop() {
	defer s.wg.Done()
	for {
		select {
		case buf := <-s.queue:
			s.write(buf)

		case done := <-s.flush:
			// everything queued before the flush request goes first
			for drained := false; !drained; {
				select {
				case buf := <-s.queue:
					s.write(buf)
				default:
					drained = true
				}
			}
			done <- s.buffer.Flush()

		case <-s.closed:
			for {
				select {
				case buf := <-s.queue:
					s.write(buf)
				default:
					return
				}
			}
		}
	}
}

// Persist encodes command and queues it to be written
func (s *JSONStorage) Persist(command *Command) error {

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(command)
	if err != nil {
		bufferPool.Put(buf)
		return fmt.Errorf("json encode command: %w", err)
	}

	select {
	case s.queue <- buf:
		return nil
	case <-s.closed:
		bufferPool.Put(buf)
		return ErrStorageClosed
	}
}

// Sync waits until every persisted command reaches the file
func (s *JSONStorage) Sync() error {
	done := make(chan error, 1)
	select {
	case s.flush <- done:
	case <-s.closed:
		return ErrStorageClosed
	}
	err := <-done
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func (s *JSONStorage) Close() error {
	alreadyClosed := true
	s.closeOnce.Do(func() {
		alreadyClosed = false
		close(s.closed)
	})
	if alreadyClosed {
		return nil
	}
	s.wg.Wait()
	err := s.buffer.Flush()
	if err != nil {
		s.file.Close()
		return fmt.Errorf("flush: %w", err)
	}
	return s.file.Close()
}
