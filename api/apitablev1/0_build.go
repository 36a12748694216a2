package apitablev1

import (
	"github.com/fulldump/box"

	"github.com/fulldump/recordset/service"
)

func BuildV1Table(v1 *box.R, s service.Servicer) *box.R {

	tables := v1.Resource("/tables").
		WithActions(
			box.Get(listTables),
			box.Post(createTable),
		)

	v1.Resource("/tables/{tableName}").
		WithActions(
			box.Get(getTable),
			box.ActionPost(find),
			box.ActionPost(insert),
			box.ActionPost(upsert),
			box.ActionPost(remove),
			box.ActionPost(patch),
			box.ActionPost(drop),
		)

	return tables
}
