package apitablev1

import (
	"context"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/service"
)

func listTables(ctx context.Context) ([]*service.Table, error) {
	return GetServicer(ctx).ListTables(ctx)
}

func createTable(ctx context.Context, w http.ResponseWriter, input *schema.Schema) (*service.Table, error) {

	table, err := GetServicer(ctx).CreateTable(input)
	if err != nil {
		return nil, err
	}

	w.WriteHeader(http.StatusCreated)
	return table, nil
}

func getTable(ctx context.Context) (*service.Table, error) {
	return GetServicer(ctx).GetTable(ctx, box.GetUrlParameter(ctx, "tableName"))
}

func drop(ctx context.Context) error {
	return GetServicer(ctx).DropTable(box.GetUrlParameter(ctx, "tableName"))
}
