package tags

import (
	"encoding/json"
	"sort"
	"strings"
)

// Tag is a dot-separated hierarchical name, e.g. "Ability.Skill.Fire".
type Tag string

func (t Tag) IsValid() bool { return t != "" }

func (t Tag) String() string { return string(t) }

// MatchesTag reports whether t equals other or is a descendant of it.
// "A.B".MatchesTag("A") is true, "A".MatchesTag("A.B") is false.
func (t Tag) MatchesTag(other Tag) bool {
	if !t.IsValid() || !other.IsValid() {
		return false
	}
	if t == other {
		return true
	}
	return strings.HasPrefix(string(t), string(other)+".")
}

func (t Tag) MatchesAny(c Container) bool {
	for _, o := range c.tags {
		if t.MatchesTag(o) {
			return true
		}
	}
	return false
}

// Parent returns the direct parent, or "" for a root tag.
func (t Tag) Parent() Tag {
	i := strings.LastIndexByte(string(t), '.')
	if i < 0 {
		return ""
	}
	return t[:i]
}

// Container is an ordered, add-unique set of tags. Containers have value
// semantics: mutations never write into a backing array shared with a copy.
type Container struct {
	tags []Tag
}

func New(ts ...Tag) Container {
	var c Container
	for _, t := range ts {
		c.Add(t)
	}
	return c
}

// FromStrings builds a container from raw names, skipping blanks.
func FromStrings(ss []string) Container {
	var c Container
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		c.Add(Tag(s))
	}
	return c
}

func (c Container) Len() int      { return len(c.tags) }
func (c Container) IsEmpty() bool { return len(c.tags) == 0 }

// Tags returns a copy of the tags in insertion order.
func (c Container) Tags() []Tag {
	out := make([]Tag, len(c.tags))
	copy(out, c.tags)
	return out
}

func (c Container) Strings() []string {
	out := make([]string, len(c.tags))
	for i, t := range c.tags {
		out[i] = string(t)
	}
	return out
}

func (c Container) Clone() Container {
	return Container{tags: c.Tags()}
}

func (c *Container) Add(t Tag) {
	if !t.IsValid() || c.HasTagExact(t) {
		return
	}
	c.tags = append(c.tags[:len(c.tags):len(c.tags)], t)
}

func (c *Container) Append(other Container) {
	for _, t := range other.tags {
		c.Add(t)
	}
}

// AppendMatching appends every tag of a that matches any tag of b.
func (c *Container) AppendMatching(a, b Container) {
	for _, t := range a.tags {
		if t.MatchesAny(b) {
			c.Add(t)
		}
	}
}

func (c *Container) Remove(t Tag) bool {
	for i, o := range c.tags {
		if o == t {
			next := make([]Tag, 0, len(c.tags)-1)
			next = append(next, c.tags[:i]...)
			c.tags = append(next, c.tags[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Container) RemoveAll(other Container) {
	for _, t := range other.tags {
		c.Remove(t)
	}
}

func (c *Container) Reset() { c.tags = nil }

func (c Container) HasTagExact(t Tag) bool {
	for _, o := range c.tags {
		if o == t {
			return true
		}
	}
	return false
}

// HasTag reports whether any tag in c matches t, so {"A.B"}.HasTag("A") is true.
func (c Container) HasTag(t Tag) bool {
	for _, o := range c.tags {
		if o.MatchesTag(t) {
			return true
		}
	}
	return false
}

// HasAny reports whether c has any tag of other. An empty other never matches.
func (c Container) HasAny(other Container) bool {
	for _, t := range other.tags {
		if c.HasTag(t) {
			return true
		}
	}
	return false
}

// HasAll reports whether c has every tag of other. An empty other always matches.
func (c Container) HasAll(other Container) bool {
	for _, t := range other.tags {
		if !c.HasTag(t) {
			return false
		}
	}
	return true
}

// Filter returns the tags of c that match any tag of other.
func (c Container) Filter(other Container) Container {
	var out Container
	out.AppendMatching(c, other)
	return out
}

// Parents returns c expanded with every ancestor of every tag.
func (c Container) Parents() Container {
	var out Container
	for _, t := range c.tags {
		for p := t; p.IsValid(); p = p.Parent() {
			out.Add(p)
		}
	}
	return out
}

func (c Container) Equal(other Container) bool {
	if len(c.tags) != len(other.tags) {
		return false
	}
	for i := range c.tags {
		if c.tags[i] != other.tags[i] {
			return false
		}
	}
	return true
}

// Sorted returns the tags sorted lexically, for digests and stable output.
func (c Container) Sorted() []Tag {
	out := c.Tags()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c Container) String() string {
	return strings.Join(c.Strings(), ", ")
}

func (c Container) MarshalYAML() (any, error) { return c.Strings(), nil }

func (c *Container) UnmarshalYAML(unmarshal func(any) error) error {
	var ss []string
	if err := unmarshal(&ss); err != nil {
		return err
	}
	*c = FromStrings(ss)
	return nil
}

func (c Container) MarshalJSON() ([]byte, error) { return json.Marshal(c.Strings()) }

func (c *Container) UnmarshalJSON(b []byte) error {
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return err
	}
	*c = FromStrings(ss)
	return nil
}

// Gob goes through the same string list as JSON so snapshots can carry
// containers.
func (c Container) GobEncode() ([]byte, error) { return c.MarshalJSON() }

func (c *Container) GobDecode(b []byte) error { return c.UnmarshalJSON(b) }
