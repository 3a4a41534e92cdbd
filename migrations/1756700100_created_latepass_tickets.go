package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("latepass_tickets")

		collection.Fields.Add(
			&core.TextField{
				Name:     "ticket_number",
				Required: true,
				Pattern:  `^LPT-\d{4}-\d{6}$`,
			},
			&core.TextField{
				Name:     "student_id",
				Required: true,
			},
			&core.TextField{
				Name:     "timetable_id",
				Required: true,
			},
			&core.TextField{
				Name:     "org_id",
				Required: true,
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"issued", "used", "expired", "canceled"},
			},
			&core.DateField{
				Name:     "issued_at",
				Required: true,
			},
			&core.DateField{
				Name:     "expires_at",
				Required: true,
			},
			&core.DateField{
				Name: "used_at",
			},
			&core.TextField{
				Name:     "qr_code_data",
				Required: true,
			},
			&core.TextField{
				Name:     "issued_by_user_id",
				Required: true,
			},
			&core.TextField{
				Name: "canceled_by_user_id",
			},
			&core.TextField{
				Name: "cancellation_reason",
			},
			&core.DateField{
				Name: "canceled_at",
			},
		)

		// Ticket numbers are unique system-wide, not per org.
		collection.AddIndex("idx_latepass_ticket_number", true, "ticket_number", "")
		collection.AddIndex("idx_latepass_student_status", false, "student_id, status", "")
		collection.AddIndex("idx_latepass_status_expiry", false, "status, expires_at", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("latepass_tickets")
		if err != nil {
			return nil
		}
		return app.Delete(collection)
	})
}
