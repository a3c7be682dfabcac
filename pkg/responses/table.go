package responses

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"henkbot/pkg/message"
)

// DefaultNamePlaceholder is replaced with the last sender's name in replies.
const DefaultNamePlaceholder = "!name"

// ErrInvalidTable reports a response table that cannot be used.
var ErrInvalidTable = errors.New("invalid response table")

// Topic groups the trigger aliases that share a reply counter and pool.
type Topic struct {
	ID        string   `yaml:"id"`
	Aliases   []string `yaml:"aliases"`
	Responses []string `yaml:"responses"`
}

// Table is the trigger alias table with its response pools.
type Table struct {
	NamePlaceholder string `yaml:"name_placeholder"`
	// AlwaysRespond is the alias answered on every mention. It must be one of
	// the topic aliases; empty disables it.
	AlwaysRespond string  `yaml:"always_respond"`
	Topics        []Topic `yaml:"topics"`
}

// Parse decodes and validates a YAML response table. Aliases are stored in
// their query-normalised form.
func Parse(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidTable, err)
	}

	if err := table.normalize(); err != nil {
		return nil, err
	}

	return &table, nil
}

func (t *Table) normalize() error {
	t.NamePlaceholder = strings.TrimSpace(t.NamePlaceholder)
	if t.NamePlaceholder == "" {
		t.NamePlaceholder = DefaultNamePlaceholder
	}

	topicIDs := make(map[string]struct{}, len(t.Topics))
	aliasOwners := make(map[string]string)

	for i := range t.Topics {
		topic := &t.Topics[i]
		topic.ID = strings.TrimSpace(topic.ID)
		if topic.ID == "" {
			return fmt.Errorf("%w: topic %d has no id", ErrInvalidTable, i)
		}
		if _, ok := topicIDs[topic.ID]; ok {
			return fmt.Errorf("%w: duplicate topic %q", ErrInvalidTable, topic.ID)
		}
		topicIDs[topic.ID] = struct{}{}

		if len(topic.Responses) == 0 {
			return fmt.Errorf("%w: topic %q has no responses", ErrInvalidTable, topic.ID)
		}

		aliases := make([]string, 0, len(topic.Aliases))
		for _, raw := range topic.Aliases {
			alias := message.PrepareQuery(raw)
			if alias == "" {
				continue
			}
			if owner, ok := aliasOwners[alias]; ok {
				return fmt.Errorf("%w: alias %q used by %q and %q", ErrInvalidTable, alias, owner, topic.ID)
			}
			aliasOwners[alias] = topic.ID
			aliases = append(aliases, alias)
		}
		if len(aliases) == 0 {
			return fmt.Errorf("%w: topic %q has no aliases", ErrInvalidTable, topic.ID)
		}
		topic.Aliases = aliases
	}

	t.AlwaysRespond = message.PrepareQuery(t.AlwaysRespond)
	if t.AlwaysRespond != "" {
		if _, ok := aliasOwners[t.AlwaysRespond]; !ok {
			return fmt.Errorf("%w: always_respond %q is not a topic alias", ErrInvalidTable, t.AlwaysRespond)
		}
	}

	return nil
}

// IsAlwaysRespond reports whether alias is the always-respond alias.
func (t *Table) IsAlwaysRespond(alias string) bool {
	return t != nil && t.AlwaysRespond != "" && alias == t.AlwaysRespond
}

// Match finds the first alias, in table order, that occurs as whole words in
// text. It returns the alias and the topic it belongs to.
func (t *Table) Match(text string) (string, *Topic, bool) {
	if t == nil {
		return "", nil, false
	}

	query := message.PrepareQuery(text)
	if query == "" {
		return "", nil, false
	}

	for i := range t.Topics {
		topic := &t.Topics[i]
		for _, alias := range topic.Aliases {
			if containsWord(query, alias) {
				return alias, topic, true
			}
		}
	}

	return "", nil, false
}

// containsWord reports whether alias occurs in text with no letter or digit
// directly before or after it.
func containsWord(text string, alias string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], alias)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(alias)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}

		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}

	return false
}

// isWordRune is false for utf8.RuneError, which marks either end of the text.
func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// Pick chooses a reply from topic using intn and fills in name.
func (t *Table) Pick(topic *Topic, name string, intn func(int) int) string {
	if topic == nil || len(topic.Responses) == 0 {
		return ""
	}

	choice := topic.Responses[intn(len(topic.Responses))]
	return strings.ReplaceAll(choice, t.NamePlaceholder, name)
}
