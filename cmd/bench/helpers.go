package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fulldump/recordset/bootstrap"
	"github.com/fulldump/recordset/configuration"
)

type JSON = map[string]any

func Parallel(workers int, f func(worker int)) {
	wg := &sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			f(worker)
		}(i)
	}
	wg.Wait()
}

func TempDir() (string, func()) {
	dir, err := os.MkdirTemp("", "recordset_bench_*")
	if err != nil {
		panic("Could not create temp directory: " + err.Error())
	}

	cleanup := func() {
		os.RemoveAll(dir)
	}

	return dir, cleanup
}

// CreateTable creates a fresh table and returns its name
func CreateTable(base string) string {

	name := "bench-" + strconv.FormatInt(time.Now().UnixNano(), 10)

	payload, _ := json.Marshal(JSON{
		"name": name,
		"columns": []JSON{
			{"name": "id", "type": "int", "primary_key": true},
			{"name": "worker", "type": "int"},
			{"name": "value", "type": "float", "default": 0},
		},
	})

	resp, err := http.Post(base+"/v1/tables", "application/json", bytes.NewReader(payload))
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()

	io.Copy(os.Stdout, resp.Body)

	return name
}

// CreateServer starts an embedded server on a temporary directory and waits
// until it accepts requests.
func CreateServer(c *Config) (dir string, stop func()) {
	dir, cleanup := TempDir()
	cleanups = append(cleanups, cleanup)

	conf := configuration.Default()
	conf.Dir = dir
	conf.Backend = c.Backend
	conf.LogLevel = "error"
	c.Base = "http://" + conf.HttpAddr

	start, stop, err := bootstrap.Bootstrap(&conf)
	if err != nil {
		fmt.Println("ERROR: bootstrap:", err.Error())
		os.Exit(2)
	}
	go start()

	for {
		resp, err := http.Get(c.Base + "/v1/tables")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
	}

	return dir, stop
}

func Do(client *http.Client, url string, body io.Reader) {

	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		fmt.Println("ERROR: new request:", err.Error())
		os.Exit(3)
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Println("ERROR: do request:", err.Error())
		os.Exit(4)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		fmt.Println("ERROR: bad status:", resp.Status)
	}
}

func NewClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     1024,
			MaxIdleConnsPerHost: 1024,
			MaxIdleConns:        1024,
		},
	}
}

func Report(action string, n int64, took time.Duration) {
	fmt.Println(action+":", n)
	fmt.Println("took:", took)
	fmt.Printf("Throughput: %.2f rows/sec\n", float64(n)/took.Seconds())
}
