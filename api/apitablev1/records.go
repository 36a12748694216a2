package apitablev1

import (
	"context"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/recordset/query"
)

type findRequest struct {
	Filter query.Filter `json:"filter"`
	Skip   int          `json:"skip"`
	Limit  int          `json:"limit"`
	Fields []string     `json:"fields"`
}

func find(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &findRequest{}
	err := readBody(r.Body, input)
	if err != nil {
		return err
	}

	records, err := GetServicer(ctx).Find(ctx, box.GetUrlParameter(ctx, "tableName"), input.Filter, input.Skip, input.Limit)
	if err != nil {
		return err
	}

	writeRecords(w, http.StatusOK, records, input.Fields...)
	return nil
}

// how to try with curl:
// curl -X POST --data-binary @items.jsonl http://localhost:8080/v1/tables/accounts:insert
func insert(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	records, err := readRecords(r.Body)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	inserted, err := GetServicer(ctx).Insert(ctx, box.GetUrlParameter(ctx, "tableName"), records)
	if err != nil {
		return err
	}

	writeRecords(w, http.StatusCreated, inserted)
	return nil
}

func upsert(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	records, err := readRecords(r.Body)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	inserted, err := GetServicer(ctx).Upsert(ctx, box.GetUrlParameter(ctx, "tableName"), records)
	if err != nil {
		return err
	}

	writeRecords(w, http.StatusOK, inserted)
	return nil
}

type removeRequest struct {
	Filter query.Filter `json:"filter"`
}

func remove(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &removeRequest{}
	err := readBody(r.Body, input)
	if err != nil {
		return err
	}

	removed, err := GetServicer(ctx).Remove(ctx, box.GetUrlParameter(ctx, "tableName"), input.Filter)
	if err != nil {
		return err
	}

	writeRecords(w, http.StatusOK, removed)
	return nil
}

type patchRequest struct {
	Filter query.Filter   `json:"filter"`
	Patch  map[string]any `json:"patch"`
}

func patch(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	input := &patchRequest{}
	err := readBody(r.Body, input)
	if err != nil {
		return err
	}

	patched, err := GetServicer(ctx).Patch(ctx, box.GetUrlParameter(ctx, "tableName"), input.Filter, input.Patch)
	if err != nil {
		return err
	}

	writeRecords(w, http.StatusOK, patched)
	return nil
}
