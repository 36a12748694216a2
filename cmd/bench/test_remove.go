package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fulldump/recordset/collection"
	"github.com/fulldump/recordset/configuration"
)

func TestRemove(c Config) {

	createServer := c.Base == ""

	var dataDir string
	var stop func()
	if createServer {
		dataDir, stop = CreateServer(&c)
	}

	table := CreateTable(c.Base)
	client := NewClient()

	{
		fmt.Println("Preload records...")
		body := &bytes.Buffer{}
		encoder := json.NewEncoder(body)
		for i := int64(0); i < c.N; i++ {
			encoder.Encode(JSON{
				"id":     i,
				"worker": i % int64(c.Workers),
			})
		}
		Do(client, c.Base+"/v1/tables/"+table+":insert", body)
	}

	removeURL := fmt.Sprintf("%s/v1/tables/%s:remove", c.Base, table)

	t0 := time.Now()
	Parallel(c.Workers, func(worker int) {
		// Remove all records belonging to this worker
		body := fmt.Sprintf(`{"filter":{"worker":%d}}`, worker)
		Do(client, removeURL, bytes.NewBufferString(body))
	})
	Report("removed", c.N, time.Since(t0))

	if !createServer {
		return
	}

	stop()

	if c.Backend != configuration.BackendCollection {
		return
	}

	t1 := time.Now()
	col, err := collection.OpenCollection(filepath.Join(dataDir, table), nil)
	if err != nil {
		fmt.Println("ERROR: open collection:", err.Error())
		return
	}
	defer col.Close()
	Report("replayed", c.N*2, time.Since(t1))
}
