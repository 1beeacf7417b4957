package domain

type CommandName string

const (
	CommandStatus  CommandName = "status"
	CommandStart   CommandName = "start"
	CommandStop    CommandName = "stop"
	CommandRestart CommandName = "restart"
)

func (cn CommandName) IsValid() bool {
	switch cn {
	case CommandStatus,
		CommandStart,
		CommandStop,
		CommandRestart:
		return true
	}
	return false
}

// IsLifecycle reports whether the command acts on the container mapped to
// the invoking channel.
func (cn CommandName) IsLifecycle() bool {
	return cn == CommandStart || cn == CommandStop || cn == CommandRestart
}

// Description is shown in the chat client's command picker.
func (cn CommandName) Description() string {
	switch cn {
	case CommandStatus:
		return "Show the status of every relayed container"
	case CommandStart:
		return "Starts the container of the channel this command is used in"
	case CommandStop:
		return "Stops the container of the channel this command is used in"
	case CommandRestart:
		return "Restarts the container of the channel this command is used in"
	}
	return ""
}

// Command is an inbound request from the chat side.
type Command struct {
	Name        CommandName
	ChannelId   string
	ChannelName string
	UserId      string
}
