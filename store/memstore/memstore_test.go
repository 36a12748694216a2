package memstore

import (
	"testing"

	"github.com/fulldump/recordset/store"
	"github.com/fulldump/recordset/store/storetest"
)

func TestMemstore(t *testing.T) {
	m := New()
	storetest.TechnologyCompatibilityKit(t, func() store.Session {
		return m.NewSession()
	})
}
