package bot

import "strings"

// Command is a parsed "<prefix><name> args..." message.
type Command struct {
	Name string   // lowercased, without prefix
	Args []string // whitespace separated
	Text string   // everything after the name, trimmed
}

// ParseCommand reports whether body starts with prefix followed by a name.
func ParseCommand(body, prefix string) (Command, bool) {
	body = strings.TrimSpace(body)
	if prefix == "" || !strings.HasPrefix(body, prefix) {
		return Command{}, false
	}
	rest := strings.TrimSpace(body[len(prefix):])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Command{}, false
	}

	name := fields[0]
	text := strings.TrimSpace(rest[len(name):])
	return Command{
		Name: strings.ToLower(name),
		Args: fields[1:],
		Text: text,
	}, true
}
