package admin

// Status tags the outcome of an admin operation. The command layer maps
// these onto its own UI rendering; the bridge never writes to chat itself.
type Status string

const (
	StatusOk              Status = "ok"
	StatusNotAuthorised   Status = "not_authorised"
	StatusNoSuchHub       Status = "no_such_hub"
	StatusAlreadyLinked   Status = "already_linked"
	StatusNotLinked       Status = "not_linked"
	StatusHubExists       Status = "hub_exists"
	StatusInvalidArgument Status = "invalid_argument"
	StatusInternalError   Status = "internal_error"
)

// Result is the tagged return value of every admin operation.
type Result struct {
	Status  Status   `json:"status"`
	HubID   string   `json:"hub_id,omitempty"`
	Token   string   `json:"token,omitempty"`
	Words   []string `json:"words,omitempty"`
	Message string   `json:"message,omitempty"`
}

// HubSettings is the owner-editable subset of hub attributes. Nil fields
// are left untouched.
type HubSettings struct {
	Name        *string
	Description *string
	IsPublic    *bool
	FilterNSFW  *bool
}

func ok() Result { return Result{Status: StatusOk} }

func failure(s Status, msg string) Result { return Result{Status: s, Message: msg} }
