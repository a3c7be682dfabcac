package henk

// Module contributes commands and callbacks to a Bot during startup.
type Module interface {
	Name() string
	// Initialise prepares module state before registration.
	Initialise(*Bot) error
	// RegisterCommands adds the module's commands and callbacks.
	RegisterCommands(*Bot) error
}

// DefaultModules is the fixed module set of a production bot.
func DefaultModules() []Module {
	return []Module{&Admin{}, &Mood{}}
}
