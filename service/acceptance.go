package service

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
)

type JSON = map[string]any

// JSONLines decodes a response made of consecutive JSON documents
func JSONLines(resp *apitest.Response) []any {
	result := []any{}
	d := json.NewDecoder(strings.NewReader(resp.BodyString()))
	for {
		var item any
		if err := d.Decode(&item); err != nil {
			return result
		}
		result = append(result, item)
	}
}

func ndjson(items ...JSON) string {
	body := ""
	for _, item := range items {
		line, _ := json.Marshal(item)
		body += string(line) + "\n"
	}
	return body
}

func Acceptance(a *biff.A, apiRequest func(method, path string) *apitest.Request) {

	columns := []JSON{
		{"name": "id", "type": "int", "primary_key": true},
		{"name": "name", "type": "string", "default": ""},
		{"name": "balance", "type": "float", "default": 0},
	}

	a.Alternative("Create table", func(a *biff.A) {
		resp := apiRequest("POST", "/tables").
			WithBodyJson(JSON{
				"name":    "accounts",
				"columns": columns,
			}).Do()
		Save(resp, "Create table", ``)

		biff.AssertEqual(resp.StatusCode, http.StatusCreated)
		biff.AssertEqualJson(resp.BodyJson(), JSON{
			"name":         "accounts",
			"columns":      columns,
			"primary_keys": []string{"id"},
			"total":        0,
		})

		a.Alternative("Create table twice", func(a *biff.A) {
			resp := apiRequest("POST", "/tables").
				WithBodyJson(JSON{
					"name":    "accounts",
					"columns": columns,
				}).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusConflict)
		})

		a.Alternative("Retrieve table", func(a *biff.A) {
			resp := apiRequest("GET", "/tables/accounts").Do()
			Save(resp, "Retrieve table", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqual(resp.BodyJson().(JSON)["total"], json.Number("0"))
		})

		a.Alternative("List tables", func(a *biff.A) {
			resp := apiRequest("GET", "/tables").Do()
			Save(resp, "List tables", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)
			biff.AssertEqualJson(resp.BodyJson(), []JSON{
				{
					"name":         "accounts",
					"columns":      columns,
					"primary_keys": []string{"id"},
					"total":        0,
				},
			})
		})

		a.Alternative("Drop table", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/accounts:drop").Do()
			Save(resp, "Drop table", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusOK)

			a.Alternative("Get dropped table", func(a *biff.A) {
				resp := apiRequest("GET", "/tables/accounts").Do()

				biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
			})
		})

		a.Alternative("Insert nothing", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/accounts:insert").Do()

			biff.AssertEqual(resp.StatusCode, http.StatusNoContent)
		})

		a.Alternative("Insert malformed", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/accounts:insert").
				WithBodyString(`{"id": 1}` + "\n" + `{"id": `).Do()

			biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
		})

		a.Alternative("Insert many", func(a *biff.A) {
			resp := apiRequest("POST", "/tables/accounts:insert").
				WithBodyString(ndjson(
					JSON{"id": 1, "name": "Alfonso"},
					JSON{"id": 2, "name": "Gerardo", "balance": 20},
					JSON{"id": 3, "name": "Alfonso"},
				)).Do()
			Save(resp, "Insert many", ``)

			biff.AssertEqual(resp.StatusCode, http.StatusCreated)
			biff.AssertEqualJson(JSONLines(resp), []JSON{
				{"id": 1, "name": "Alfonso", "balance": 0},
				{"id": 2, "name": "Gerardo", "balance": 20},
				{"id": 3, "name": "Alfonso", "balance": 0},
			})

			a.Alternative("Find", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/accounts:find").
					WithBodyJson(JSON{
						"filter": JSON{"name": "Alfonso"},
					}).Do()
				Save(resp, "Find", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(JSONLines(resp), []JSON{
					{"id": 1, "name": "Alfonso", "balance": 0},
					{"id": 3, "name": "Alfonso", "balance": 0},
				})
			})

			a.Alternative("Find with skip and limit", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/accounts:find").
					WithBodyJson(JSON{
						"skip":  1,
						"limit": 1,
					}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(JSONLines(resp), []JSON{
					{"id": 2, "name": "Gerardo", "balance": 20},
				})
			})

			a.Alternative("Find with fields", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/accounts:find").
					WithBodyJson(JSON{
						"filter": JSON{"id": 2},
						"fields": []string{"name", "missing"},
					}).Do()
				Save(resp, "Find with fields", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(JSONLines(resp), []JSON{
					{"name": "Gerardo"},
				})
			})

			a.Alternative("Find with operators", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/accounts:find").
					WithBodyJson(JSON{
						"filter": JSON{"balance": JSON{"$gt": 10}},
					}).Do()

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqual(len(JSONLines(resp)), 1)
			})

			a.Alternative("Insert duplicated", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/accounts:insert").
					WithBodyString(ndjson(JSON{"id": 2, "name": "Impostor"})).Do()
				Save(resp, "Insert duplicated", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusConflict)
			})

			a.Alternative("Upsert", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/accounts:upsert").
					WithBodyString(ndjson(
						JSON{"id": 2, "name": "Impostor"},
						JSON{"id": 4, "name": "Laura"},
					)).Do()
				Save(resp, "Upsert", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(JSONLines(resp), []JSON{
					{"id": 4, "name": "Laura", "balance": 0},
				})

				resp = apiRequest("GET", "/tables/accounts").Do()
				biff.AssertEqual(resp.BodyJson().(JSON)["total"], json.Number("4"))
			})

			a.Alternative("Remove", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/accounts:remove").
					WithBodyJson(JSON{
						"filter": JSON{"id": 2},
					}).Do()
				Save(resp, "Remove", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(JSONLines(resp), []JSON{
					{"id": 2, "name": "Gerardo", "balance": 20},
				})

				resp = apiRequest("GET", "/tables/accounts").Do()
				biff.AssertEqual(resp.BodyJson().(JSON)["total"], json.Number("2"))
			})

			a.Alternative("Patch", func(a *biff.A) {
				resp := apiRequest("POST", "/tables/accounts:patch").
					WithBodyJson(JSON{
						"filter": JSON{"name": "Alfonso"},
						"patch":  JSON{"balance": 10},
					}).Do()
				Save(resp, "Patch", ``)

				biff.AssertEqual(resp.StatusCode, http.StatusOK)
				biff.AssertEqualJson(JSONLines(resp), []JSON{
					{"id": 1, "name": "Alfonso", "balance": 10},
					{"id": 3, "name": "Alfonso", "balance": 10},
				})

				resp = apiRequest("POST", "/tables/accounts:find").
					WithBodyJson(JSON{
						"filter": JSON{"balance": 10},
					}).Do()
				biff.AssertEqual(len(JSONLines(resp)), 2)
			})
		})
	})

	a.Alternative("Create invalid table", func(a *biff.A) {
		resp := apiRequest("POST", "/tables").
			WithBodyJson(JSON{
				"name":    "broken",
				"columns": []JSON{},
			}).Do()

		biff.AssertEqual(resp.StatusCode, http.StatusBadRequest)
	})

	a.Alternative("Find in missing table", func(a *biff.A) {
		resp := apiRequest("POST", "/tables/missing:find").Do()

		biff.AssertEqual(resp.StatusCode, http.StatusNotFound)
	})
}
