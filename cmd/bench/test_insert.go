package main

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"
)

// batchSize records per :insert request, every request is one recordset commit
const batchSize = 1000

func TestInsert(c Config) {

	if c.Base == "" {
		_, stop := CreateServer(&c)
		defer stop()
	}

	table := CreateTable(c.Base)
	insertURL := c.Base + "/v1/tables/" + table + ":insert"
	client := NewClient()

	items := c.N

	t0 := time.Now()
	Parallel(c.Workers, func(worker int) {
		body := &bytes.Buffer{}
		for {
			body.Reset()
			for i := 0; i < batchSize; i++ {
				n := atomic.AddInt64(&items, -1)
				if n < 0 {
					break
				}
				fmt.Fprintf(body, "{\"id\":%d,\"worker\":%d}\n", n, worker)
			}
			if body.Len() == 0 {
				return
			}
			Do(client, insertURL, body)
		}
	})

	Report("sent", c.N, time.Since(t0))
}
