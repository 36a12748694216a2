package collection

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
)

type loadedCommand struct {
	seq int
	cmd *Command
	err error
}

type line struct {
	seq  int
	data []byte
}

// loadCommands decodes the lines of r in parallel and delivers the commands
// in the original order.
func loadCommands(r io.Reader, concurrency int) (<-chan *Command, <-chan error) {
	out := make(chan *Command, 100)
	errChan := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errChan)

		scanner := bufio.NewScanner(r)
		const maxCapacity = 16 * 1024 * 1024
		scanner.Buffer(make([]byte, 64*1024), maxCapacity)

		lines := make(chan line, 100)
		results := make(chan loadedCommand, 100)
		stop := make(chan struct{})
		defer close(stop)

		wg := &sync.WaitGroup{}
		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for item := range lines {
					cmd := &Command{}
					err := json.Unmarshal(item.data, cmd)
					if err != nil {
						err = fmt.Errorf("decode command %d: %w", item.seq, err)
					}
					select {
					case results <- loadedCommand{seq: item.seq, cmd: cmd, err: err}:
					case <-stop:
						return
					}
				}
			}()
		}

		// Feeder
		go func() {
			defer func() {
				wg.Wait()
				close(results)
			}()
			defer close(lines)
			seq := 0
			for scanner.Scan() {
				data := append([]byte{}, scanner.Bytes()...)
				if len(data) == 0 {
					continue
				}
				select {
				case lines <- line{seq: seq, data: data}:
				case <-stop:
					return
				}
				seq++
			}
			if err := scanner.Err(); err != nil {
				select {
				case results <- loadedCommand{seq: -1, err: err}:
				case <-stop:
				}
			}
		}()

		// Re-assembler
		pending := map[int]*Command{}
		next := 0
		for res := range results {
			if res.err != nil {
				errChan <- res.err
				return
			}
			pending[res.seq] = res.cmd
			for {
				cmd, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				out <- cmd
				next++
			}
		}
	}()

	return out, errChan
}

// LoadCollection replays the command log of filename into c
func LoadCollection(filename string, c *Collection) error {
	f, err := os.Open(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	cmds, errs := loadCommands(f, runtime.NumCPU())

	for cmd := range cmds {
		err := c.apply(cmd)
		if err != nil {
			// drain so the loader goroutines can finish
			for range cmds {
			}
			return fmt.Errorf("replay %s %s: %w", cmd.Name, cmd.Uuid, err)
		}
	}

	if err := <-errs; err != nil {
		return err
	}

	return nil
}
