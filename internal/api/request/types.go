package request

// CommandRequest is the request body for applying a player command
type CommandRequest struct {
	Command string `json:"command"`
	Arg     string `json:"arg,omitempty"`
}
