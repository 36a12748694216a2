package apitablev1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fulldump/recordset/schema"
)

// ErrBadRequest wraps every malformed request body
var ErrBadRequest = errors.New("bad request")

// readRecords decodes a stream of JSON objects, one after the other
func readRecords(r io.Reader) ([]schema.Record, error) {

	decoder := jsontext.NewDecoder(r)
	records := []schema.Record{}

	for {
		if decoder.PeekKind() == 0 {
			// end of input, or a syntax error reported by UnmarshalDecode
			_, err := decoder.ReadToken()
			if err == io.EOF {
				return records, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
		}

		record := schema.Record{}
		err := jsonv2.UnmarshalDecode(decoder, &record)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %s", ErrBadRequest, len(records), err.Error())
		}
		records = append(records, record)
	}
}

// readBody decodes an optional JSON body into v
func readBody(r io.Reader, v any) error {

	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	err = jsonv2.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadRequest, err.Error())
	}

	return nil
}

// project keeps only the given paths of data. Paths use gjson syntax so
// nested values can be picked ("address.city").
func project(data []byte, fields []string) []byte {
	result := []byte(`{}`)
	for _, field := range fields {
		value := gjson.GetBytes(data, field)
		if !value.Exists() {
			continue
		}
		projected, err := sjson.SetRawBytes(result, field, []byte(value.Raw))
		if err != nil {
			continue
		}
		result = projected
	}
	return result
}

func writeRecords(w http.ResponseWriter, status int, records []schema.Record, fields ...string) {

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(status)

	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			continue
		}
		if len(fields) > 0 {
			data = project(data, fields)
		}
		w.Write(append(data, '\n'))
	}
}
