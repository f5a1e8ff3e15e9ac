package command

import "github.com/bwmarrin/discordgo"

// Registry maps command names to commands. It is built once at startup
// and read-only afterwards.
type Registry struct {
	commands map[string]Command
	ordered  []Command
}

func NewRegistry(cmds ...Command) *Registry {
	r := &Registry{commands: make(map[string]Command)}
	for _, cmd := range cmds {
		r.commands[cmd.Name()] = cmd
		r.ordered = append(r.ordered, cmd)
	}
	return r
}

// Get returns the command with the given name.
func (r *Registry) Get(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// All returns the commands in registration order.
func (r *Registry) All() []Command {
	return r.ordered
}

// SlashDefinitions collects the application-command definitions of
// every registered command that provides one.
func (r *Registry) SlashDefinitions() []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, cmd := range r.ordered {
		if sp, ok := cmd.(SlashProvider); ok {
			if def := sp.SlashDefinition(); def != nil {
				if def.Type == 0 {
					def.Type = discordgo.ChatApplicationCommand
				}
				defs = append(defs, def)
			}
		}
	}
	return defs
}
