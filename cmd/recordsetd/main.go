package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fulldump/goconfig"

	"github.com/fulldump/recordset/bootstrap"
	"github.com/fulldump/recordset/configuration"
)

var banner = `
                                  _          _
 _ __ ___  ___ ___  _ __ __| |___  ___| |_
| '__/ _ \/ __/ _ \| '__/ _' / __|/ _ \ __|
| | |  __/ (_| (_) | | | (_| \__ \  __/ |_
|_|  \___|\___\___/|_|  \__,_|___/\___|\__|
                     version ` + bootstrap.VERSION + `
`

func main() {

	c := configuration.Default()
	goconfig.Read(&c)

	if c.Version {
		fmt.Println("Version:", bootstrap.VERSION)
		return
	}

	if c.ShowBanner {
		fmt.Println(banner)
	}

	if c.ShowConfig {
		e := json.NewEncoder(os.Stdout)
		e.SetIndent("", "    ")
		e.Encode(c)
	}

	start, _, err := bootstrap.Bootstrap(&c)
	if err != nil {
		fmt.Println("ERROR:", err.Error())
		os.Exit(-1)
	}

	start()
}
