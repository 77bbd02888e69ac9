package shared

// Permissions declared for RBAC.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermAdherentsView = "adherents.view"
	PermAdherentsEdit = "adherents.edit"

	PermTresorerieView = "tresorerie.view"
	PermTresorerieEdit = "tresorerie.edit"

	PermSyntheseView = "synthese.view"

	PermEventsView = "events.view"
	PermEventsEdit = "events.edit"

	PermElectionsView   = "elections.view"
	PermElectionsManage = "elections.manage"

	PermRelanceEdit = "relance.edit"
)

// AllScopes lists every permission known to the application, used when
// seeding the administrator role.
func AllScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermAdherentsView,
		PermAdherentsEdit,
		PermTresorerieView,
		PermTresorerieEdit,
		PermSyntheseView,
		PermEventsView,
		PermEventsEdit,
		PermElectionsView,
		PermElectionsManage,
		PermRelanceEdit,
	}
}
