package hub

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// WildcardTopic subscribes to every topic. It is equivalent to sending no topics at all.
const WildcardTopic = "*"

var topicPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,63}$`)

// ValidateTopic reports whether topic is usable as an event or subscription topic.
func ValidateTopic(topic string) error {
	if !topicPattern.MatchString(topic) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	return nil
}

// TopicSet is the set of topics a connection listens to. An empty set matches everything.
type TopicSet map[string]struct{}

// ParseTopics parses a comma separated topic list such as "orders,users".
// Blank entries are ignored; an empty list or one containing "*" yields the
// empty (match-all) set.
func ParseTopics(raw string) (TopicSet, error) {
	set := TopicSet{}
	for _, part := range strings.Split(raw, ",") {
		topic := strings.TrimSpace(part)
		if topic == "" {
			continue
		}
		if topic == WildcardTopic {
			return TopicSet{}, nil
		}
		if err := ValidateTopic(topic); err != nil {
			return nil, err
		}
		set[topic] = struct{}{}
	}
	return set, nil
}

// NewTopicSet builds a set from already validated topics.
func NewTopicSet(topics ...string) TopicSet {
	set := make(TopicSet, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return set
}

// All reports whether the set matches every topic.
func (s TopicSet) All() bool {
	return len(s) == 0
}

// Matches uses exact string comparison only.
func (s TopicSet) Matches(topic string) bool {
	if s.All() {
		return true
	}
	_, ok := s[topic]
	return ok
}

// List returns the topics in sorted order, or ["*"] for the match-all set.
func (s TopicSet) List() []string {
	if s.All() {
		return []string{WildcardTopic}
	}
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s TopicSet) String() string {
	return strings.Join(s.List(), ",")
}
