package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("timetables")

		collection.Fields.Add(
			&core.DateField{
				Name:     "start_date_time",
				Required: true,
			},
			&core.TextField{
				Name:     "org_id",
				Required: true,
			},
		)

		collection.AddIndex("idx_timetables_org", false, "org_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("timetables")
		if err != nil {
			return nil
		}
		return app.Delete(collection)
	})
}
