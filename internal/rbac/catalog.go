// AngelaMos | 2026
// catalog.go

package rbac

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionEdit   = "edit"
	ActionDelete = "delete"
	ActionExport = "export"
)

var Resources = []string{
	"users",
	"roles",
	"permissions",
	"articles",
	"quizzes",
	"categories",
	"homophones",
	"analytics",
	"reports",
	"dashboard",
}

var Actions = []string{ActionView, ActionCreate, ActionEdit, ActionDelete}

// PermissionName builds the `{page}-{action}` name a route is guarded by.
func PermissionName(page, action string) string {
	if action == "" {
		action = ActionView
	}
	return page + "-" + action
}

// Catalog lists every permission the platform knows, resource-major.
func Catalog() []string {
	names := make([]string, 0, len(Resources)*len(Actions)+1)
	for _, res := range Resources {
		for _, act := range Actions {
			names = append(names, PermissionName(res, act))
		}
	}
	return append(names, PermissionName("analytics", ActionExport))
}
