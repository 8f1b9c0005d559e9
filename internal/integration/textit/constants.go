package textit

// API resources, appended to the configured base URL with a .json suffix
const (
	ResourceContacts       = "contacts"
	ResourceGroups         = "groups"
	ResourceContactActions = "contact_actions"
)

// ContactAction values accepted by the contact_actions endpoint
type ContactAction string

const (
	ContactActionAdd ContactAction = "add"
)

// Query parameters understood by the list endpoints
const (
	QueryUUID   = "uuid"
	QueryName   = "name"
	QueryGroup  = "group"
	QueryCursor = "cursor"
)

// Web UI paths, relative to the configured web URL
const (
	webContactPath = "contact/read/"
	webGroupPath   = "contact/filter/"
)
